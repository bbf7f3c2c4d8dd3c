package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naumachia-labs/clustermanager/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clusterctl",
		Short: "Operator CLI for the cluster manager control plane",
		Long: `clusterctl inspects and pokes the cluster manager's Redis-backed state.

  clusterctl clusters list              # every cluster and its status
  clusterctl vpns show <id>              # one VPN's veth, links and challenge
  clusterctl users show <cn>             # resolve a certificate CN to a user id and vlan
  clusterctl connections list            # live connections
  clusterctl reconcile                   # run one reconciliation sweep now`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.AddCommand(
		newClustersCmd(),
		newVpnsCmd(),
		newUsersCmd(),
		newConnectionsCmd(),
		newReconcileCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("clusterctl %s (%s)\n", version.Version, version.GitCommit)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
