package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/logger"
)

// NewRootCmd creates the root command for docveil.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docveil",
		Short: "Offline PII detection and anonymization for documents",
		Long: `Docveil detects personally identifiable information in text documents
and replaces it with deterministic placeholder tokens.

Detection combines rule-based recognizers (email, IBAN, phone numbers,
Swiss addresses and more) with an optional local ML model. No document
content ever leaves the machine.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRecognizersCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfigAndLogger builds the runtime configuration and logger shared
// by all subcommands.
func loadConfigAndLogger(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	loggerConfig := logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, log, nil
}
