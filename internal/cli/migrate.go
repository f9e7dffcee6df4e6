package cli

import (
	"fmt"
	"log/slog"

	"github.com/pianoholic0120/wp1141-sub002/internal/db"

	"github.com/spf13/cobra"
)

// NewMigrateCommand applies the embedded schema. Every statement is
// idempotent, so rerunning is safe.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := rootOpts.LoadConfig()
			if dsn != "" {
				cfg.PostgresURL = dsn
			}

			q, release, err := rootOpts.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer release()

			slog.Debug("applying schema", "bytes", len(db.Schema()))
			if err := db.Migrate(cmd.Context(), q); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres URL (defaults to POSTGRES_URL)")
	return cmd
}
