// Package control wires the event listener to the action functions,
// implementing the control plane's handler registrations and startup/
// shutdown sequencing (spec.md §4.8).
package control

import (
	"context"
	"strings"
	"time"

	"github.com/naumachia-labs/clustermanager/pkg/actions"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/listener"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// Control bundles the dependencies the handlers close over.
type Control struct {
	DB       *db.Gateway
	Actions  *actions.Actions
	Listener *listener.Listener
}

// New builds a Control plane and registers its handlers on l.
func New(gw *db.Gateway, a *actions.Actions, l *listener.Listener) *Control {
	c := &Control{DB: gw, Actions: a, Listener: l}
	c.registerHandlers()
	return c
}

// registerHandlers installs the four patterns the control plane reacts to
// (spec.md §4.3, §4.8).
func (c *Control) registerHandlers() {
	c.Listener.Register("connection-set", "Connection:*:alive", []string{"set"}, c.handleConnectionSet)
	c.Listener.Register("connection-deleted", "Connection:*:alive", []string{"del", "expired"}, c.handleConnectionDeleted)
	c.Listener.Register("cluster-expired", "Cluster:*:status", []string{"expired"}, c.handleClusterExpired)
	c.Listener.Register("veth-set", "Vpn:*:veth", []string{"set"}, c.handleVethSet)
}

// connectionAddr extracts the Address from a "Connection:{addr}:alive" key.
func connectionAddr(key string) (db.Address, error) {
	rest := strings.TrimPrefix(key, "Connection:")
	rest = strings.TrimSuffix(rest, ":alive")
	return db.ParseAddress(rest)
}

// clusterUserChal splits a "Cluster:{user}@{chal}:status" key into its
// user and challenge ids.
func clusterUserChal(key string) (userID, chalID string, ok bool) {
	rest := strings.TrimPrefix(key, "Cluster:")
	rest = strings.TrimSuffix(rest, ":status")
	idx := strings.Index(rest, "@")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// vpnIDFromKey extracts the Vpn id from a "Vpn:{id}:veth" key.
func vpnIDFromKey(key string) string {
	rest := strings.TrimPrefix(key, "Vpn:")
	return strings.TrimSuffix(rest, ":veth")
}

func (c *Control) handleConnectionSet(ctx context.Context, ev listener.Event) {
	log := util.WithHandler("connection-set").WithField("key", ev.Key)

	addr, err := connectionAddr(ev.Key)
	if err != nil {
		log.WithField("error", err).Error("invalid connection key")
		return
	}
	conn := c.DB.Connection(addr)

	alive, ok, err := conn.Alive(ctx)
	if err != nil {
		log.WithField("error", err).Error("read connection alive field")
		return
	}
	if !ok {
		log.Info("connection vanished before handler ran")
		return
	}
	if !alive {
		// A pre-shutdown partial write: defer teardown to the delete-path
		// handler, which fires on its own event (spec.md §4.8).
		if err := conn.DeleteAliveField(ctx); err != nil {
			log.WithField("error", err).Error("delete stale alive field")
		}
		return
	}

	userID, ok, err := conn.User(ctx)
	if err != nil || !ok {
		log.WithField("error", err).Error("connection missing user reference")
		return
	}
	vpnID, ok, err := conn.Vpn(ctx)
	if err != nil || !ok {
		log.WithField("error", err).Error("connection missing vpn reference")
		return
	}
	clusterID, ok, err := conn.Cluster(ctx)
	if err != nil || !ok {
		log.WithField("error", err).Error("connection missing cluster reference")
		return
	}

	if n, err := c.DB.Cluster(clusterID).ConnectionCount(ctx); err == nil && n == 0 {
		log.Warn("connection-set fired but cluster has no recorded connections")
	}

	if err := c.Actions.VethUp(ctx, vpnID); err != nil {
		log.WithField("error", err).Error("veth_up failed")
		return
	}
	if err := c.Actions.ClusterCheck(ctx, userID, vpnID, clusterID); err != nil {
		log.WithField("error", err).Error("cluster_check failed")
		return
	}
	if err := c.Actions.ClusterUp(ctx, userID, vpnID, clusterID); err != nil {
		log.WithField("error", err).Error("cluster_up failed")
		return
	}
	if err := c.Actions.VlanLinkUp(ctx, vpnID, userID); err != nil {
		log.WithField("error", err).Error("vlan_link_up failed")
		return
	}
	if err := c.Actions.VlanLinkBridge(ctx, vpnID, userID, clusterID); err != nil {
		log.WithField("error", err).Error("vlan_link_bridge failed")
		return
	}
}

func (c *Control) handleConnectionDeleted(ctx context.Context, ev listener.Event) {
	log := util.WithHandler("connection-deleted").WithField("key", ev.Key)

	addr, err := connectionAddr(ev.Key)
	if err != nil {
		log.WithField("error", err).Error("invalid connection key")
		return
	}
	conn := c.DB.Connection(addr)

	clusterID, ok, err := conn.Cluster(ctx)
	if err != nil {
		log.WithField("error", err).Error("read connection cluster reference")
		return
	}
	if ok {
		cluster := c.DB.Cluster(clusterID)
		if err := cluster.RemoveConnection(ctx, addr); err != nil {
			log.WithField("error", err).Error("remove connection from cluster")
			return
		}
		n, err := cluster.ConnectionCount(ctx)
		if err != nil {
			log.WithField("error", err).Error("read cluster connection count")
			return
		}
		if n == 0 {
			if err := cluster.SetStatusTTL(ctx, db.ClusterExpiring, c.Actions.ClusterTimeout); err != nil {
				log.WithField("error", err).Error("set cluster expiring")
				return
			}
		} else {
			log.WithField("remaining", n).Info("cluster remains active")
		}
	}

	if err := conn.Delete(ctx); err != nil {
		log.WithField("error", err).Error("delete connection entity")
	}
}

func (c *Control) handleClusterExpired(ctx context.Context, ev listener.Event) {
	log := util.WithHandler("cluster-expired").WithField("key", ev.Key)

	userID, chalID, ok := clusterUserChal(ev.Key)
	if !ok {
		log.Error("invalid cluster key")
		return
	}
	clusterID := db.ClusterID(userID, chalID)
	cluster := c.DB.Cluster(clusterID)

	vpnID, ok, err := cluster.VpnID(ctx)
	if err != nil {
		log.WithField("error", err).Error("read cluster vpn reference")
		return
	}
	if !ok {
		log.Info("cluster vanished before handler ran")
		return
	}

	if err := c.Actions.ClusterDown(ctx, userID, vpnID, clusterID); err != nil {
		log.WithField("error", err).Error("cluster_down failed")
		return
	}
	if err := cluster.Delete(ctx); err != nil {
		log.WithField("error", err).Error("delete cluster entity")
	}
}

func (c *Control) handleVethSet(ctx context.Context, ev listener.Event) {
	log := util.WithHandler("veth-set").WithField("key", ev.Key)

	id := vpnIDFromKey(ev.Key)
	if err := c.Actions.VethUp(ctx, id); err != nil {
		log.WithField("error", err).Error("veth_up failed")
	}
}

// Run starts the listener loop, blocking until it exits. The loop ends when
// Shutdown stops the listener or ctx is cancelled.
func (c *Control) Run(ctx context.Context) error {
	return c.Listener.Run(ctx)
}

// Shutdown stops accepting new events and waits up to grace for in-flight
// workers to finish (spec.md §4.8, §5).
func (c *Control) Shutdown(grace time.Duration) {
	c.Listener.Stop()

	done := make(chan struct{})
	go func() {
		c.Listener.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		util.Logger.Warn("shutdown grace period elapsed with workers still in flight")
	}
}
