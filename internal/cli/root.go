package cli

import (
	"context"
	"log/slog"

	"github.com/pianoholic0120/wp1141-sub002/internal/config"
	"github.com/pianoholic0120/wp1141-sub002/internal/db"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the collaborators commands reach for.
type RootOptions struct {
	Verbose bool

	LoadConfig func() config.Config
	// Connect opens the store; the returned func releases it.
	Connect func(ctx context.Context, cfg config.Config) (db.Querier, func(), error)
}

func defaultConnect(_ context.Context, cfg config.Config) (db.Querier, func(), error) {
	pool, err := db.ConnectPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// NewRootCommand creates the feedctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load, Connect: defaultConnect})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedctl",
		Short: "Operator tooling for the feed interaction service",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	return cmd
}
