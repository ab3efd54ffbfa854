package main

import (
	"fmt"
	"time"

	"arena-indexer/internal/auth"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the maintenance API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.App.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			auth.InitJWT(cfg.App.JWTSecret)

			token, err := auth.GenerateToken(operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
