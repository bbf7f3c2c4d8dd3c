package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naumachia-labs/clustermanager/pkg/cli"
	"github.com/naumachia-labs/clustermanager/pkg/db"
)

func newClustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Inspect challenge clusters",
	}
	cmd.AddCommand(newClustersListCmd())
	return cmd
}

func newClustersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every cluster and its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := connect(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			ids, err := gw.ClusterIDs(ctx)
			if err != nil {
				return err
			}

			t := cli.NewTable("CLUSTER", "STATUS", "VPN", "CONNECTIONS")
			for _, id := range ids {
				cluster := gw.Cluster(id)
				status, err := cluster.Status(ctx)
				if err != nil {
					return fmt.Errorf("cluster %s: %w", id, err)
				}
				vpnID, _, _ := cluster.VpnID(ctx)
				n, err := cluster.ConnectionCount(ctx)
				if err != nil {
					return fmt.Errorf("cluster %s: %w", id, err)
				}
				t.Row(id, colorClusterStatus(status), vpnID, fmt.Sprintf("%d", n))
			}
			t.Flush()
			return nil
		},
	}
}

func colorClusterStatus(status string) string {
	switch status {
	case db.ClusterUp:
		return cli.Green(status)
	case db.ClusterExpiring:
		return cli.Yellow(status)
	case db.ClusterStopped:
		return cli.Yellow(status)
	case db.ClusterDown:
		return cli.Red(status)
	default:
		return status
	}
}
