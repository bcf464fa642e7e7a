package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/anubis/internal/keys"
	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/token"
)

type tokenFlags struct {
	keyFile      string
	keyTimestamp string
	ttl          time.Duration
}

func (f *tokenFlags) register(cmd *cobra.Command, defaultTimestamp string) {
	cmd.Flags().StringVar(&f.keyFile, "key", "", "PEM private key file")
	cmd.Flags().StringVar(&f.keyTimestamp, "key-timestamp", defaultTimestamp, "Timestamp of the signing key")
	cmd.Flags().DurationVar(&f.ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("key")
}

func (f *tokenFlags) privateKey() (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(f.keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return keys.ParsePrivateKeyPEM(data)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint signed tokens",
	}
	cmd.AddCommand(systemTokenCmd())
	cmd.AddCommand(tenantTokenCmd())
	return cmd
}

func systemTokenCmd() *cobra.Command {
	var (
		flags    tokenFlags
		tenant   string
		audience string
	)

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Mint a system token",
		Long:  `Mint a token signed with the system key. Send it with "User: system".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := flags.privateKey()
			if err != nil {
				return err
			}
			res, err := token.BuildSystem(token.SystemParams{
				Tenant:            tenant,
				TargetApplication: audience,
				KeyTimestamp:      flags.keyTimestamp,
				PrivateKey:        key,
				SecondsToLive:     int64(flags.ttl.Seconds()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.BearerValue())
			return nil
		},
	}

	flags.register(cmd, "")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant the token is issued for")
	cmd.Flags().StringVar(&audience, "audience", "anubis-v1", "Target application")
	_ = cmd.MarkFlagRequired("key-timestamp")

	return cmd
}

func tenantTokenCmd() *cobra.Command {
	var (
		flags       tokenFlags
		user        string
		source      string
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Mint a tenant token",
		Long: `Mint a token as the tenant's identity manager would.

Permissions are given as path=OPERATION[,OPERATION...], for example
  --permission 'anubis-v1/users/{useridentifier}/permissions=READ'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := parseContent(permissions)
			if err != nil {
				return err
			}
			key, err := flags.privateKey()
			if err != nil {
				return err
			}
			res, err := token.BuildTenant(token.TenantParams{
				User:              user,
				KeyTimestamp:      flags.keyTimestamp,
				SourceApplication: source,
				Content:           content,
				PrivateKey:        key,
				SecondsToLive:     int64(flags.ttl.Seconds()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.BearerValue())
			return nil
		},
	}

	flags.register(cmd, token.DefaultKeyTimestamp)
	cmd.Flags().StringVar(&user, "user", "", "User the token is issued to")
	cmd.Flags().StringVar(&source, "source", "", "Application that requested the token")
	cmd.Flags().StringArrayVar(&permissions, "permission", nil, "Granted permission, repeatable")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func parseContent(entries []string) (token.Content, error) {
	content := token.Content{Permissions: []token.ContentPermission{}}
	for _, entry := range entries {
		path, ops, ok := strings.Cut(entry, "=")
		if !ok || path == "" || ops == "" {
			return token.Content{}, fmt.Errorf("invalid permission %q: expected path=OPERATION[,OPERATION]", entry)
		}
		cp := token.ContentPermission{Path: path}
		for _, raw := range strings.Split(ops, ",") {
			op, err := permission.ParseOperation(raw)
			if err != nil {
				return token.Content{}, err
			}
			cp.Operations = append(cp.Operations, op)
		}
		content.Permissions = append(content.Permissions, cp)
	}
	return content, nil
}
