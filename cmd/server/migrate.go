package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/area-reservation/internal/config"
	"github.com/iliyamo/area-reservation/internal/database"
)

// newMigrateCmd applies the embedded schema of the configured driver, or
// prints it with --print.
func newMigrateCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the reservation tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if printOnly {
				schema, err := database.Schema(cfg.StoreDriver)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), schema)
				return nil
			}
			ctx := cmd.Context()
			switch cfg.StoreDriver {
			case config.DriverMySQL:
				db, err := database.OpenMySQL(ctx, mysqlConfig(cfg))
				if err != nil {
					return err
				}
				defer db.Close()
				err = database.MigrateMySQL(ctx, db)
				if err != nil {
					return err
				}
			case config.DriverPostgres:
				pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := database.MigratePostgres(ctx, pool); err != nil {
					return err
				}
			default:
				return fmt.Errorf("store driver %q has no schema", cfg.StoreDriver)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema applied\n", cfg.StoreDriver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
