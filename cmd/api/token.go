package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/octobees/leads-enrichment/api/internal/auth"
	"github.com/octobees/leads-enrichment/api/internal/config"
)

var tokenFlags struct {
	orgID  string
	member string
	email  string
	role   string
}

// tokenCmd signs a bearer token for local testing. Production tokens come from
// the identity provider that shares JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		orgID, err := uuid.Parse(tokenFlags.orgID)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}

		token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).GenerateToken(tokenFlags.member, orgID, tokenFlags.email, tokenFlags.role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.orgID, "org", "", "organization id")
	tokenCmd.Flags().StringVar(&tokenFlags.member, "member", "dev-member", "member id")
	tokenCmd.Flags().StringVar(&tokenFlags.email, "email", "", "member email")
	tokenCmd.Flags().StringVar(&tokenFlags.role, "role", auth.RoleMember, "member role")
	_ = tokenCmd.MarkFlagRequired("org")
}
