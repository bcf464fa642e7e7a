package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/anubis/internal/keys"
)

func timestampCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timestamp",
		Short: "Print a key timestamp for the current time",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), keys.NewTimestamp(time.Now()))
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <timestamp>",
		Short: "Check that a key timestamp is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keys.CheckTimestamp(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
			return nil
		},
	})

	return cmd
}
