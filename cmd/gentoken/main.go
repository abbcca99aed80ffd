// cmd/gentoken issues the service token a shop terminal presents to the server.
// Usage: JWT_SECRET=... go run ./cmd/gentoken --terminal loja-1
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/spf13/cobra"
)

func main() {
	var (
		terminal string
		rol      string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "gentoken",
		Short: "Issue a signed bearer token for a shop terminal",
		Long: `Issue an HS256 token signed with JWT_SECRET. Release builds embed it with
-ldflags "-X .../internal/config.BuildRemoteToken=<token>".
Without --ttl the lifetime is JWT_EXPIRATION_HOURS; --ttl 0 never expires.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = time.Duration(cfg.JWTExpirationHours) * time.Hour
			}
			token, err := service.NewAuthService(cfg.JWTSecret).IssueToken(terminal, rol, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&terminal, "terminal", "", "terminal name carried in the token (required)")
	cmd.Flags().StringVar(&rol, "role", service.RoleTerminal, "terminal | admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime")
	_ = cmd.MarkFlagRequired("terminal")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
