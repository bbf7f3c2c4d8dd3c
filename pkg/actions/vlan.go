package actions

import (
	"context"

	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// VlanLinkUp creates the VLAN sub-interface for (vpn, user) if it does not
// already exist, recovering from a pre-existing kernel interface that the
// DB lost track of (spec.md §4.5, scenario S4).
func (a *Actions) VlanLinkUp(ctx context.Context, vpnID string, userID string) error {
	vpn := a.DB.Vpn(vpnID)
	user := a.DB.User(userID)
	holder := util.NewLockToken()

	return vpn.Lock(ctx, holder, func() error {
		vlan, ok, err := user.Vlan(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return util.NewPreconditionError("vlan_link_up", "User:"+userID, "vlan not allocated")
		}

		link, err := vpn.Link(ctx, vlan)
		if err != nil {
			return err
		}
		if link == db.LinkUp || link == db.LinkBridged {
			return nil
		}

		veth, ok, err := vpn.Veth(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return util.NewPreconditionError("vlan_link_up", "Vpn:"+vpnID, "veth name not recorded")
		}

		err = cmdexec.Vlan(ctx, a.Runner, cmdexec.VlanAdd, veth, vlan)
		if err != nil {
			if !cmdexec.ErrorMatch(err, 2, nil) {
				return err
			}
			if showErr := cmdexec.Vlan(ctx, a.Runner, cmdexec.VlanShow, veth, vlan); showErr != nil {
				return err
			}
			util.WithVpn(vpnID).WithField("vlan", vlan).
				Warn("vlan add reported already-exists; kernel already carries an unrecorded link, proceeding")
		}

		return vpn.SetLink(ctx, vlan, db.LinkUp)
	})
}

// VlanLinkBridge attaches the VLAN sub-interface for (vpn, user) to the
// cluster's default bridge. Cluster and Vpn locks are acquired in that
// fixed order to avoid AB/BA deadlock with the cluster action's own lock
// acquisition (spec.md §4.5 step order, §5, §9(d)).
func (a *Actions) VlanLinkBridge(ctx context.Context, vpnID, userID, clusterID string) error {
	cluster := a.DB.Cluster(clusterID)
	clusterHolder := util.NewLockToken()

	return cluster.Lock(ctx, clusterHolder, func() error {
		vpn := a.DB.Vpn(vpnID)
		user := a.DB.User(userID)
		vpnHolder := util.NewLockToken()

		return vpn.Lock(ctx, vpnHolder, func() error {
			vlan, ok, err := user.Vlan(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return util.NewPreconditionError("vlan_link_bridge", "User:"+userID, "vlan not allocated")
			}

			link, err := vpn.Link(ctx, vlan)
			if err != nil {
				return err
			}
			if link == db.LinkBridged {
				return nil
			}

			status, err := cluster.Status(ctx)
			if err != nil {
				return err
			}
			if status != db.ClusterUp {
				return util.NewPreconditionError("vlan_link_bridge", "Cluster:"+clusterID, "cluster must be up")
			}
			if link != db.LinkUp {
				return util.NewPreconditionError("vlan_link_bridge", "Vpn:"+vpnID, "link must be up")
			}

			veth, ok, err := vpn.Veth(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return util.NewPreconditionError("vlan_link_bridge", "Vpn:"+vpnID, "veth name not recorded")
			}

			bridge, err := a.Bridge.BridgeID(ctx, clusterID)
			if err != nil {
				return err
			}

			ifname := cmdexec.VlanIfname(veth, vlan)
			if err := cmdexec.Bridge(ctx, a.Runner, cmdexec.BridgeAddIf, bridge, ifname); err != nil {
				return err
			}
			return vpn.SetLink(ctx, vlan, db.LinkBridged)
		})
	})
}
