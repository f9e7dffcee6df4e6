package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/auth"
	"github.com/pianoholic0120/wp1141-sub002/internal/social"

	"github.com/spf13/cobra"
)

// NewUserCommand groups user directory commands.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the local user directory",
	}
	cmd.AddCommand(newUserCreateCommand(rootOpts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		handle string
		name   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print its id and a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if handle == "" {
				return errors.New("--handle is required")
			}
			cfg := rootOpts.LoadConfig()
			q, release, err := rootOpts.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer release()

			u, err := social.NewService(q).CreateUser(cmd.Context(), handle, name)
			if err != nil {
				return err
			}
			token, err := auth.SignToken(cfg.JWTSecret, u.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id\t%s\nhandle\t%s\ntoken\t%s\n", u.ID, u.Handle, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "unique handle, with or without @")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
