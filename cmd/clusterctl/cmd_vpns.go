package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naumachia-labs/clustermanager/pkg/cli"
)

func newVpnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpns",
		Short: "Inspect VPN daemons",
	}
	cmd.AddCommand(newVpnsShowCmd())
	return cmd
}

func newVpnsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a VPN's veth, challenge, and per-vlan link states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := connect(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			vpn := gw.Vpn(args[0])
			exists, err := vpn.Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no such vpn: %s", args[0])
			}

			veth, _, err := vpn.Veth(ctx)
			if err != nil {
				return err
			}
			state, err := vpn.VethState(ctx)
			if err != nil {
				return err
			}
			chal, hasChal, err := vpn.Chal(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("vpn:    %s\n", args[0])
			fmt.Printf("veth:   %s (%s)\n", veth, state)
			if hasChal {
				fmt.Printf("chal:   %s\n", chal.ID)
			} else {
				fmt.Printf("chal:   %s\n", cli.Dim("none"))
			}

			links, err := vpn.Links(ctx)
			if err != nil {
				return err
			}
			if len(links) > 0 {
				fmt.Println()
				t := cli.NewTable("VLAN", "LINK")
				for vlan, link := range links {
					t.Row(vlan, link)
				}
				t.Flush()
			}
			return nil
		},
	}
}
