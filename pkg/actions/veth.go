package actions

import (
	"context"

	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// VethUp brings a Vpn's host-side virtual Ethernet endpoint up. It is the
// sole writer of veth_state post-registration and is idempotent: a Vpn
// already reporting UP is a no-op (spec.md §4.4).
func (a *Actions) VethUp(ctx context.Context, vpnID string) error {
	vpn := a.DB.Vpn(vpnID)
	holder := util.NewLockToken()

	return vpn.Lock(ctx, holder, func() error {
		state, err := vpn.VethState(ctx)
		if err != nil {
			return err
		}
		if state == db.VethUp {
			util.WithVpn(vpnID).Debug("veth already up")
			return nil
		}

		veth, ok, err := vpn.Veth(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return util.NewPreconditionError("veth_up", "Vpn:"+vpnID, "veth name not recorded")
		}

		if err := cmdexec.LinkUp(ctx, a.Runner, veth, true); err != nil {
			return err
		}
		return vpn.SetVethState(ctx, db.VethUp)
	})
}
