package actions

import (
	"context"
	"errors"

	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// ClusterCheck is pure reconciliation: if a cluster claims to be UP or
// EXPIRING but its default bridge no longer exists (the container runtime
// was restarted under it), it downgrades status to DOWN and any BRIDGED
// link on the user's vlan back to UP. It never invokes a subprocess
// (spec.md §4.7).
func (a *Actions) ClusterCheck(ctx context.Context, userID, vpnID, clusterID string) error {
	cluster := a.DB.Cluster(clusterID)
	status, err := cluster.Status(ctx)
	if err != nil {
		return err
	}
	if status != db.ClusterUp && status != db.ClusterExpiring {
		return nil
	}

	if _, err := a.Bridge.BridgeID(ctx, clusterID); err == nil {
		return nil
	}

	util.WithCluster(clusterID).Warn("cluster_check: default bridge missing, forcing status down")
	if err := cluster.SetStatus(ctx, db.ClusterDown); err != nil {
		return err
	}

	user := a.DB.User(userID)
	vpn := a.DB.Vpn(vpnID)
	vlan, ok, err := user.Vlan(ctx)
	if err != nil || !ok {
		return err
	}
	link, err := vpn.Link(ctx, vlan)
	if err != nil {
		return err
	}
	if link == db.LinkBridged {
		return vpn.SetLink(ctx, vlan, db.LinkUp)
	}
	return nil
}

// composeFiles resolves the composition files for the challenge a Vpn
// serves, the set passed to every Compose invocation for this cluster.
func (a *Actions) composeFiles(ctx context.Context, vpnID string) ([]string, error) {
	vpn := a.DB.Vpn(vpnID)
	chal, ok, err := vpn.Chal(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.NewPreconditionError("cluster_up", "Vpn:"+vpnID, "challenge not recorded")
	}
	return chal.Files(ctx)
}

// ClusterUp brings a cluster's composition up, cancelling a pending
// expiration if one was in progress, and retrying once through a teardown
// if the first attempt fails (spec.md §4.7, scenario S5).
func (a *Actions) ClusterUp(ctx context.Context, userID, vpnID, clusterID string) error {
	cluster := a.DB.Cluster(clusterID)
	holder := util.NewLockToken()

	return cluster.Lock(ctx, holder, func() error {
		status, err := cluster.Status(ctx)
		if err != nil {
			return err
		}

		if status == db.ClusterExpiring {
			if err := cluster.ClearStatusTTL(ctx); err != nil {
				return err
			}
			return cluster.SetStatus(ctx, db.ClusterUp)
		}
		if status == db.ClusterUp {
			return nil
		}

		files, err := a.composeFiles(ctx, vpnID)
		if err != nil {
			return err
		}

		if err := cmdexec.Compose(ctx, a.Runner, cmdexec.ComposeUp, clusterID, files); err != nil {
			util.WithCluster(clusterID).WithField("error", err).
				Warn("compose up failed, retrying after a teardown")
			if downErr := cmdexec.Compose(ctx, a.Runner, cmdexec.ComposeDown, clusterID, files); downErr != nil {
				util.WithCluster(clusterID).WithField("error", downErr).
					Warn("compose down during retry also failed")
			}
			if err := cmdexec.Compose(ctx, a.Runner, cmdexec.ComposeUp, clusterID, files); err != nil {
				return err
			}
		}

		return cluster.SetStatusAndVpn(ctx, db.ClusterUp, vpnID)
	})
}

// ClusterStop stops (without tearing down) a cluster's composition.
func (a *Actions) ClusterStop(ctx context.Context, vpnID, clusterID string) error {
	cluster := a.DB.Cluster(clusterID)
	holder := util.NewLockToken()

	return cluster.Lock(ctx, holder, func() error {
		exists, err := cluster.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		status, err := cluster.Status(ctx)
		if err != nil {
			return err
		}
		if status == db.ClusterStopped {
			return nil
		}

		files, err := a.composeFiles(ctx, vpnID)
		if err != nil {
			return err
		}
		if err := cmdexec.Compose(ctx, a.Runner, cmdexec.ComposeStop, clusterID, files); err != nil {
			return err
		}
		return cluster.SetStatus(ctx, db.ClusterStopped)
	})
}

// ClusterDown tears a cluster's composition down. Status is optimistically
// set to DOWN, and any BRIDGED link for the user downgraded to UP, before
// Compose DOWN runs: a failed teardown then leaves the safer of the two
// states (spec.md §4.7).
func (a *Actions) ClusterDown(ctx context.Context, userID, vpnID, clusterID string) error {
	cluster := a.DB.Cluster(clusterID)
	holder := util.NewLockToken()

	return cluster.Lock(ctx, holder, func() error {
		if err := cluster.SetStatus(ctx, db.ClusterDown); err != nil {
			return err
		}

		user := a.DB.User(userID)
		vpn := a.DB.Vpn(vpnID)
		if vlan, ok, err := user.Vlan(ctx); err == nil && ok {
			if link, err := vpn.Link(ctx, vlan); err == nil && link == db.LinkBridged {
				if err := vpn.SetLink(ctx, vlan, db.LinkUp); err != nil {
					return err
				}
			}
		} else if err != nil {
			return err
		}

		files, err := a.composeFiles(ctx, vpnID)
		if err != nil && !errors.Is(err, util.ErrPreconditionFailed) {
			return err
		}
		return cmdexec.Compose(ctx, a.Runner, cmdexec.ComposeDown, clusterID, files)
	})
}
