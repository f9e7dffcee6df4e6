package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/auth"

	"github.com/spf13/cobra"
)

// NewTokenCommand issues a bearer token for a user id, for local testing.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg := rootOpts.LoadConfig()
			token, err := auth.SignToken(cfg.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
