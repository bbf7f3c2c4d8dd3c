package control

import (
	"context"
	"time"

	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// DefaultSweepInterval is how often Sweep runs absent a configured override
// (spec.md §9: "periodic reconciliation sweep").
const DefaultSweepInterval = 60 * time.Second

// Sweep runs ClusterCheck over every (user, vpn) pair reachable from the
// global vpns and users sets, backstopping the notification-driven loop
// against dropped keyspace events (spec.md §9, property P7).
func (c *Control) Sweep(ctx context.Context) {
	log := util.WithHandler("sweep")

	vpnIDs, err := c.DB.VpnIDs(ctx)
	if err != nil {
		log.WithField("error", err).Error("list vpns")
		return
	}
	userIDs, err := c.DB.UserIDs(ctx)
	if err != nil {
		log.WithField("error", err).Error("list users")
		return
	}

	for _, vpnID := range vpnIDs {
		chal, ok, err := c.DB.Vpn(vpnID).Chal(ctx)
		if err != nil {
			log.WithField("vpn", vpnID).WithField("error", err).Error("read vpn challenge")
			continue
		}
		if !ok {
			continue
		}
		for _, userID := range userIDs {
			clusterID := db.ClusterID(userID, chal.ID)
			if err := c.Actions.ClusterCheck(ctx, userID, vpnID, clusterID); err != nil {
				log.WithField("cluster", clusterID).WithField("error", err).Error("sweep cluster_check failed")
			}
		}
	}
}

// RunSweepLoop runs Sweep on a ticker until ctx is cancelled.
func (c *Control) RunSweepLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}
