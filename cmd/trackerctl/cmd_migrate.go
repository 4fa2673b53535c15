package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema to the configured SQL store",
		Long: `Create or upgrade the stages, tasks and template tables.

Only the sqlite and postgres backends keep a schema. Migration is
idempotent; running it against an up-to-date database changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storeCfg := c.cfg.Store
			if storeCfg.Backend != config.BackendSQLite && storeCfg.Backend != config.BackendPostgres {
				return fmt.Errorf("migrate needs a sqlite or postgres backend, profile %q uses %q",
					c.profile, storeCfg.Backend)
			}

			s, err := storage.OpenSQL(cmd.Context(), storeCfg, c.logger)
			if err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return fmt.Errorf("closing store: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", storeCfg.Backend)
			return nil
		},
	}

	cmd.Flags().String("backend", "", "override the profile's store backend (sqlite or postgres)")
	cmd.Flags().String("dsn", "", "override the profile's store DSN")
	return cmd
}
