package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/anubis/internal/keys"
)

func jwksCmd() *cobra.Command {
	var (
		keyFile      string
		keyTimestamp string
	)

	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Render a system public key as a JWKS document",
		Long:  `Render the public half of a PEM private key as a JWKS document whose kid is the key timestamp. Serve it at SYSTEM_JWKS_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keys.CheckTimestamp(keyTimestamp); err != nil {
				return err
			}
			data, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			key, err := keys.ParsePrivateKeyPEM(data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keys.JWKS{Keys: []keys.JWK{keys.ToJWK(keyTimestamp, &key.PublicKey)}})
		},
	}

	cmd.Flags().StringVar(&keyFile, "key", "", "PEM private key file")
	cmd.Flags().StringVar(&keyTimestamp, "key-timestamp", "", "Key timestamp used as kid")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("key-timestamp")

	return cmd
}
