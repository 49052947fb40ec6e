package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/utils/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [service]",
	Short: "Issue a service token for the internal and admin APIs",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	token, err := middleware.NewServiceTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(args[0], tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
