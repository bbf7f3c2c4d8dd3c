// Package actions implements the control loop's physical-resource
// operations: bringing up a Vpn's host-side veth, creating and bridging a
// user's VLAN sub-interface, and driving a Cluster's composition through
// its lifecycle (spec.md §4.4-§4.7).
package actions

import (
	"time"

	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/db"
)

// DefaultClusterTimeout is the TTL applied to Cluster.status when the last
// connection drops, absent an override (spec.md §6).
const DefaultClusterTimeout = 900 * time.Second

// Actions bundles the dependencies every action function needs: the DB
// gateway for state, a command runner for subprocess calls, and a bridge
// resolver for container-runtime introspection.
type Actions struct {
	DB             *db.Gateway
	Runner         cmdexec.Runner
	Bridge         BridgeResolver
	ClusterTimeout time.Duration
}

// New builds an Actions bundle, defaulting ClusterTimeout when unset.
func New(gw *db.Gateway, runner cmdexec.Runner, bridge BridgeResolver, clusterTimeout time.Duration) *Actions {
	if clusterTimeout <= 0 {
		clusterTimeout = DefaultClusterTimeout
	}
	return &Actions{DB: gw, Runner: runner, Bridge: bridge, ClusterTimeout: clusterTimeout}
}
