package cmdexec

import (
	"context"
	"fmt"
	"strconv"
)

// VlanAction selects the ip-link vlan operation to perform.
type VlanAction int

const (
	VlanAdd VlanAction = iota
	VlanDel
	VlanShow
)

// maxParentLen is the longest prefix of the parent interface name kept
// before appending ".{vlan}", so the full sub-interface name never exceeds
// the kernel's 15-character IFNAMSIZ-1 limit (spec.md §6).
const maxParentLen = 10

// VlanIfname returns the sub-interface name for (parent, vlan): the parent
// truncated to 10 characters, then ".{vlan}".
func VlanIfname(parent string, vlan int) string {
	if len(parent) > maxParentLen {
		parent = parent[:maxParentLen]
	}
	return fmt.Sprintf("%s.%d", parent, vlan)
}

// Vlan runs the requested ip-link vlan action. ADD also brings the new
// sub-interface up, matching the source tool's own ADD-then-up sequencing
// (spec.md §4.2). SHOW returns a non-nil error (classifiable via
// ErrorMatch) when the interface is absent.
func Vlan(ctx context.Context, r Runner, action VlanAction, parent string, vlan int) error {
	ifname := VlanIfname(parent, vlan)

	switch action {
	case VlanAdd:
		if _, err := run(ctx, r, "ip", "link", "add",
			"link", parent, "name", ifname, "type", "vlan", "id", strconv.Itoa(vlan)); err != nil {
			return err
		}
		return LinkUp(ctx, r, ifname, false)
	case VlanDel:
		_, err := run(ctx, r, "ip", "link", "del", ifname)
		return err
	case VlanShow:
		_, err := run(ctx, r, "ip", "link", "show", ifname)
		return err
	default:
		return fmt.Errorf("cmdexec: unknown vlan action %d", action)
	}
}
