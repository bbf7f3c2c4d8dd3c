package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naumachia-labs/clustermanager/pkg/cli"
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Inspect live connections",
	}
	cmd.AddCommand(newConnectionsListCmd())
	return cmd
}

func newConnectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every recorded connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := connect(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			addrs, err := gw.ConnectionAddrs(ctx)
			if err != nil {
				return err
			}

			t := cli.NewTable("ADDRESS", "ALIVE", "USER", "VPN", "CLUSTER")
			for _, addr := range addrs {
				conn := gw.Connection(addr)
				alive, _, err := conn.Alive(ctx)
				if err != nil {
					return fmt.Errorf("connection %s: %w", addr, err)
				}
				userID, _, _ := conn.User(ctx)
				vpnID, _, _ := conn.Vpn(ctx)
				clusterID, _, _ := conn.Cluster(ctx)
				t.Row(addr.String(), fmt.Sprintf("%v", alive), userID, vpnID, clusterID)
			}
			t.Flush()
			return nil
		},
	}
}
