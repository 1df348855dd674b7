// Package cli provides the command-line interface for docchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/docchat/internal/config"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose      bool
	showStats    bool
	userID       string
	collectionID string

	// Set up once per invocation
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	collector  *metrics.Collector
	currentApp *app
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your PDF collections",
	Long: `Docchat answers questions about collections of PDF documents.

Upload PDFs into a collection, build its index, then ask questions. Each
collection keeps its own conversation, so follow-up questions can refer
to earlier answers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if currentApp != nil {
			currentApp.Close(context.Background())
		}
		if showStats && collector != nil {
			printStats(os.Stderr, collector.Snapshot())
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print runtime statistics when done")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("DOCCHAT_USER"), "user id")
	rootCmd.PersistentFlags().StringVarP(&collectionID, "collection", "c", os.Getenv("DOCCHAT_COLLECTION"), "collection id")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(forgetCmd)
}

// getApp wires the components on first use.
func getApp(ctx context.Context) (*app, error) {
	if currentApp != nil {
		return currentApp, nil
	}
	a, err := newApp(ctx, cfg, logger, collector)
	if err != nil {
		return nil, err
	}
	currentApp = a
	return a, nil
}
