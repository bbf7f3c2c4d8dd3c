// clustermanagerd is the control plane daemon: it connects to Redis,
// subscribes to the keyspace notifications the lab's VPN and challenge
// components produce, and drives the host's network and container-runtime
// state to match (spec.md §4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/docker/client"

	"github.com/naumachia-labs/clustermanager/pkg/actions"
	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/config"
	"github.com/naumachia-labs/clustermanager/pkg/control"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/listener"
	"github.com/naumachia-labs/clustermanager/pkg/util"
	"github.com/naumachia-labs/clustermanager/pkg/version"
)

func main() {
	if len(os.Args) == 2 && os.Args[1] == "--version" {
		fmt.Printf("clustermanagerd %s (%s)\n", version.Version, version.GitCommit)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clustermanagerd: %v\n", err)
		os.Exit(1)
	}
	if err := util.SetLogLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "clustermanagerd: LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clustermanagerd: LOG_FILE: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		util.SetLogOutput(f)
	}

	if err := run(cfg); err != nil {
		util.Logger.WithField("error", err).Fatal("clustermanagerd exiting")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := db.NewGateway(ctx, db.Options{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer gw.Close()

	dockerCli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("build docker client: %w", err)
	}
	defer dockerCli.Close()

	bridge := actions.NewDockerBridgeResolver(dockerCli)
	acts := actions.New(gw, cmdexec.DefaultRunner, bridge, cfg.ClusterTimeout)

	l := listener.New(listener.NewRedisSubscriber(gw.Client()), gw.DBIndex())
	c := control.New(gw, acts, l)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go c.RunSweepLoop(sweepCtx, cfg.ReconcileInterval)

	util.WithFields(map[string]interface{}{
		"redis":    cfg.RedisAddr(),
		"redis_db": cfg.RedisDB,
	}).Info("clustermanagerd starting")

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	select {
	case <-ctx.Done():
		util.Logger.Info("shutdown signal received")
		c.Shutdown(cfg.ShutdownGrace)
		return nil
	case err := <-errCh:
		return err
	}
}
