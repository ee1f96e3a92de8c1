// Package main provides the walkforward CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/logger"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	logLevel   string
	log        *logrus.Logger
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(runCmd, windowsCmd, scheduleCmd, historyCmd)
}

var rootCmd = &cobra.Command{
	Use:           "walkforward",
	Short:         "Walk-forward validation of trading strategies",
	Long:          `Optimizes strategy parameters on rolling or anchored training windows and measures how they hold up out of sample.`,
	Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}

	secretsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := config.LoadSecretsFromAWS(secretsCtx, loaded); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := config.Validate(loaded); err != nil {
		return err
	}
	if err := config.ValidateEnvironment(loaded); err != nil {
		return err
	}

	level := loaded.App.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log = logger.NewWithOptions(level, loaded.App.LogFormat, os.Stderr)
	cfg = loaded
	return nil
}
