package actions

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// errNoSuchNetwork is wrapped into BridgeID's error when no network matches,
// letting callers classify the "missing network" failure kind (spec.md §7).
var errNoSuchNetwork = errors.New("no matching network")

// BridgeResolver resolves the Linux bridge backing a composition project's
// default network (spec.md §4.6).
type BridgeResolver interface {
	BridgeID(ctx context.Context, project string) (string, error)
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// sanitizeProjectName mirrors the composition tool's own network-naming
// rule: non-alphanumeric characters are stripped from the project name
// before it is used as a network name prefix (spec.md §4.5 step 4).
func sanitizeProjectName(project string) string {
	return nonAlnum.ReplaceAllString(project, "")
}

// dockerBridgeResolver resolves bridge ids via the Docker Engine API,
// the only component that touches the container runtime directly.
type dockerBridgeResolver struct {
	cli *client.Client
}

// NewDockerBridgeResolver builds a BridgeResolver backed by the given
// Docker Engine API client.
func NewDockerBridgeResolver(cli *client.Client) BridgeResolver {
	return &dockerBridgeResolver{cli: cli}
}

// BridgeID looks up the network named "{sanitized project}_default" and
// returns its Linux bridge name ("br-" + the first 12 characters of the
// network id). It fails if no such network exists, so callers can react
// (spec.md §4.5 step 4, §4.6, §7 "missing network").
func (r *dockerBridgeResolver) BridgeID(ctx context.Context, project string) (string, error) {
	name := sanitizeProjectName(project) + "_default"

	nets, err := r.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", fmt.Errorf("actions: list networks for %q: %w", name, err)
	}

	for _, n := range nets {
		if n.Name != name {
			continue
		}
		if len(n.ID) < 12 {
			return "", fmt.Errorf("actions: network %q has unexpectedly short id %q", name, n.ID)
		}
		return "br-" + n.ID[:12], nil
	}
	return "", fmt.Errorf("actions: no network named %q: %w", name, errNoSuchNetwork)
}
