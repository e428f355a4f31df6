package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neuropharmdb-server/internal/bootstrap"
	"github.com/neuropharmdb-server/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	open := func(cmd *cobra.Command) (*database.MigrationRunner, error) {
		m, err := loadFullConfig(cmd)
		if err != nil {
			return nil, err
		}
		cfg := m.GetConfig()
		return database.NewMigrationRunner(m.GetMigrationURL(), bootstrap.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeRunner(runner)
			return runner.Up(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeRunner(runner)
			return runner.Down(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeRunner(runner)

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	})
	return cmd
}

func closeRunner(runner *database.MigrationRunner) {
	if err := runner.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close migration runner")
	}
}
