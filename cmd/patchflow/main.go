// Command patchflow is the operator CLI for the proposal approval
// workflow: inspecting proposal and approval state and driving approve
// and reject decisions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patchflow/patchflow/internal/config"
	"github.com/patchflow/patchflow/internal/storage"
)

var (
	cfgPath string
	cfg     *config.Config
	store   storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "patchflow",
	Short: "Manage machine-generated code change proposals",
	Long: `patchflow tracks machine-generated code change proposals through
deduplication, enrichment, and a human approval workflow.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)

		store, err = storage.NewStorage(context.Background(), &storage.Config{Path: cfg.Storage.Path})
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default patchflow.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
