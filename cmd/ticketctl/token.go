package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an actor",
		Example: `  ticketctl token --user u1
  ticketctl token --user ops --role ADMIN --ttl 15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is required")
			}
			actor := domain.Actor{ID: userID, Role: domain.ParseRole(role)}
			if !auth.Authorize(actor.Role, auth.ActionRead) {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTLMinutes
			}

			token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "actor id (sub claim)")
	cmd.Flags().StringVarP(&role, "role", "r", string(domain.RoleUser), "actor role: USER or ADMIN")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
