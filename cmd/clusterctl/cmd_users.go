package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect registered users",
	}
	cmd.AddCommand(newUsersShowCmd())
	return cmd
}

func newUsersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <cn>",
		Short: "Look up a user by certificate common name and show its id and vlan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := connect(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			cn := args[0]
			userID, ok, err := gw.UserIDByCN(ctx, cn)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no such user: %s", cn)
			}

			user := gw.User(userID)
			vlan, hasVlan, err := user.Vlan(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("user:  %s\n", userID)
			fmt.Printf("cn:    %s\n", cn)
			if hasVlan {
				fmt.Printf("vlan:  %d\n", vlan)
			} else {
				fmt.Printf("vlan:  none\n")
			}
			return nil
		},
	}
}
