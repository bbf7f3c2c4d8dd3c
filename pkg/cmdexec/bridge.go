package cmdexec

import (
	"context"
	"fmt"
)

// BridgeAction selects the brctl operation to perform.
type BridgeAction int

const (
	BridgeAddIf BridgeAction = iota
	BridgeDelIf
)

// Bridge attaches or detaches iface from bridge via brctl (spec.md §4.2).
func Bridge(ctx context.Context, r Runner, action BridgeAction, bridge, iface string) error {
	switch action {
	case BridgeAddIf:
		_, err := run(ctx, r, "brctl", "addif", bridge, iface)
		return err
	case BridgeDelIf:
		_, err := run(ctx, r, "brctl", "delif", bridge, iface)
		return err
	default:
		return fmt.Errorf("cmdexec: unknown bridge action %d", action)
	}
}
