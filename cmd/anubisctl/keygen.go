package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/anubis/internal/keys"
)

type keygenOutput struct {
	Timestamp    string `json:"timestamp"`
	PublicKeyMod string `json:"publicKeyMod"`
	PublicKeyExp string `json:"publicKeyExp"`
	PrivateKey   string `json:"privateKeyFile,omitempty"`
}

func keygenCmd() *cobra.Command {
	var (
		bits int
		out  string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key",
		Long: `Generate an RSA key pair and a key timestamp for it.

The private key is written as PEM to --out. The public modulus and exponent
are printed as decimal strings, ready for POST /signatures/{timestamp} or the
/initialize key headers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keys.GenerateKeyPair(bits)
			if err != nil {
				return err
			}

			result := keygenOutput{Timestamp: keys.NewTimestamp(time.Now())}
			mod, exp := keys.ModExp(&key.PublicKey)
			result.PublicKeyMod = mod.String()
			result.PublicKeyExp = exp.String()

			if out != "" {
				if err := os.WriteFile(out, keys.EncodePrivateKeyPEM(key), 0o600); err != nil {
					return fmt.Errorf("failed to write private key: %w", err)
				}
				result.PrivateKey = out
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size in bits")
	cmd.Flags().StringVar(&out, "out", "", "File to write the PEM private key to")

	return cmd
}
