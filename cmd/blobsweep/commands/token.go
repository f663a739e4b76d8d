package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/pkg/api/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the HTTP API",
	Long: `Sign a bearer token with api.jwt_secret from the configuration.

Every /api/v1 route requires "Authorization: Bearer <token>". Health
endpoints stay open.

Examples:
  # Token valid for the default 24 hours
  blobsweep token --config /etc/blobsweep/config.yaml

  # Short-lived token for a CI job
  blobsweep token --subject ci --ttl 15m`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Subject recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default 24h)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.API.ApplyDefaults()

	svc, err := auth.NewJWTService(cfg.API.JWTConfig())
	if err != nil {
		return fmt.Errorf("api.jwt_secret: %w", err)
	}

	token, expires, err := svc.GenerateToken(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, token)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Expires %s\n", expires.Format(time.RFC3339))
	return nil
}
