// Command neuropharmctl runs maintenance tasks against a NeuroPharmDB
// deployment: schema migrations, bulk rechecks, the review queue and MCP
// client registration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuropharmdb-server/internal/bootstrap"
	"github.com/neuropharmdb-server/internal/config"
	"github.com/neuropharmdb-server/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "neuropharmctl",
		Short:        "NeuroPharmDB administration tool",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the server config file (full mode)")
	rootCmd.PersistentFlags().Bool("lite", false, "Use the local SQLite database instead of Postgres")
	rootCmd.PersistentFlags().String("data-dir", "", "Lite mode data directory (overrides NEUROPHARM_DATA_DIR)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recheckCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(mcpConfigCmd())
	return rootCmd
}

func loadFullConfig(cmd *cobra.Command) (*config.Manager, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		m   *config.Manager
		err error
	)
	if path != "" {
		m, err = config.NewManagerWithFile(path)
	} else {
		m, err = config.NewManager()
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return m, nil
}

func loadLiteConfig(cmd *cobra.Command) *config.LiteConfig {
	cfg := config.LoadLiteConfig()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg
}

// openApp wires the application for the selected deployment mode
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	if lite, _ := cmd.Flags().GetBool("lite"); lite {
		cfg := loadLiteConfig(cmd)
		return bootstrap.NewLite(cfg, bootstrap.NewLogger(cfg.LogLevel, cfg.LogFormat))
	}

	m, err := loadFullConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := m.GetConfig()
	return bootstrap.NewFull(cmd.Context(), cfg, bootstrap.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
}

func recheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recheck <user-id>",
		Short: "Re-evaluate every pair of a user's active drugs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			minSeverity, _ := cmd.Flags().GetFloat64("min-severity")
			if !cmd.Flags().Changed("min-severity") {
				minSeverity = app.Engine.Threshold()
			}

			n, err := app.Engine.OnBulkRecheck(cmd.Context(), args[0], minSeverity)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d high-risk pair(s) at severity >= %.1f\n", args[0], n, minSeverity)
			return nil
		},
	}
	cmd.Flags().Float64("min-severity", service.DefaultAlertThreshold, "Minimum severity that raises an alert")
	return cmd
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List suggestions waiting for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			pending, err := app.Suggestions.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending suggestions")
				return nil
			}
			for _, sg := range pending {
				fmt.Fprintf(out, "%d\t%s\t%s+%s\t%s\t%.1f\n",
					sg.SuggestionID, sg.UserID, sg.DrugA, sg.DrugB, sg.PredictedEffect, sg.PredictedSeverity)
			}
			return nil
		},
	}
}
