package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Simplici0/tradedesk/internal/seed"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Migrate the database and insert the default catalogs",
		Long: `Runs the schema migrations and the idempotent startup seed.

The admin account is taken from ADMIN_EMAIL and ADMIN_PASSWORD and is skipped
when either is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := seed.Run(ctx, database, seed.Config{
				AdminEmail:    opts.cfg.AdminEmail,
				AdminPassword: opts.cfg.AdminPassword,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d inserted, %d already present\n", opts.dbPath, stats.Inserts, stats.Skipped)
			return nil
		},
	}
}
