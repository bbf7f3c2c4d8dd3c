package cmdexec

import "context"

// LinkUp brings interface up, setting it promiscuous unless promisc is
// false. Idempotent: repeated calls against an already-up link succeed
// (spec.md §4.2).
func LinkUp(ctx context.Context, r Runner, iface string, promisc bool) error {
	args := []string{"link", "set", iface}
	if promisc {
		args = append(args, "promisc", "on")
	}
	args = append(args, "up")
	_, err := run(ctx, r, "ip", args...)
	return err
}
