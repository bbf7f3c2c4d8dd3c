package main

import (
	"fmt"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/naumachia-labs/clustermanager/pkg/actions"
	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/config"
	"github.com/naumachia-labs/clustermanager/pkg/control"
	"github.com/naumachia-labs/clustermanager/pkg/listener"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep immediately, outside the daemon's ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			gw, err := connect(ctx)
			if err != nil {
				return err
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

			c.Sweep(ctx)
			fmt.Println("reconciliation sweep complete")
			return nil
		},
	}
}
