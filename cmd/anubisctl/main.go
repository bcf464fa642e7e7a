package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "anubisctl",
		Short:         "Anubis key and token tooling",
		Long:          `anubisctl generates signing keys and key timestamps and mints tokens for testing an anubis deployment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(timestampCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(jwksCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
