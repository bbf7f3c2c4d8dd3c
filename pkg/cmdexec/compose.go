package cmdexec

import (
	"context"
	"fmt"
)

// ComposeAction selects the composition-tool operation to perform.
type ComposeAction int

const (
	ComposeUp ComposeAction = iota
	ComposeStop
	ComposeDown
)

// ComposeTool is the name of the composition-tool binary invoked by
// Compose, overridable for tests and for deployments that ship a
// drop-in-compatible tool.
var ComposeTool = "docker-compose"

// Compose runs the composition tool against project using the given
// composition files, in the order supplied. UP runs detached (spec.md §4.2,
// §6).
func Compose(ctx context.Context, r Runner, action ComposeAction, project string, files []string) error {
	args := []string{"-p", project}
	for _, f := range files {
		args = append(args, "-f", f)
	}

	switch action {
	case ComposeUp:
		args = append(args, "up", "-d")
	case ComposeStop:
		args = append(args, "stop")
	case ComposeDown:
		args = append(args, "down")
	default:
		return fmt.Errorf("cmdexec: unknown compose action %d", action)
	}

	_, err := run(ctx, r, ComposeTool, args...)
	return err
}
