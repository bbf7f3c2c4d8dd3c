package main

import (
	"context"

	"github.com/naumachia-labs/clustermanager/pkg/config"
	"github.com/naumachia-labs/clustermanager/pkg/db"
)

// connect loads the daemon's configuration and dials the same Redis
// database clustermanagerd uses, so clusterctl always inspects the live
// control-plane state.
func connect(ctx context.Context) (*db.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewGateway(ctx, db.Options{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
}
