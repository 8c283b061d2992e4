// Package cmd provides the CLI commands for lawsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/config"
	"github.com/redwell/law-search/internal/logging"
	"github.com/redwell/law-search/pkg/version"
)

var (
	cfgPath   string
	debugMode bool

	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func()
)

// NewRootCmd creates the root command for the lawsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lawsearch",
		Short: "Hybrid full-text and vector search over Japanese statutes",
		Long: `lawsearch ingests statute XML from the e-Gov open-data service,
extracts articles, generates embeddings, and serves hybrid
(full-text + vector) legal search from a local SQLite store.

Typical flow:

  lawsearch init       prepare the store and verify the embedding model
  lawsearch collect    download the configured statute set
  lawsearch process    extract, embed, and store all collected statutes
  lawsearch search     query from the command line
  lawsearch serve      expose the search API over HTTP`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("lawsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML configuration file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupRuntime
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	}

	cmd.AddCommand(
		newInitCmd(),
		newCollectCmd(),
		newProcessCmd(),
		newSearchCmd(),
		newServeCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newCleanupCmd(),
		newVersionCmd(),
	)
	return cmd
}

func setupRuntime(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.FilePath
	if debugMode {
		logCfg.Level = "debug"
	}
	logCleanup, err = logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	logger = slog.Default()
	return nil
}

// Execute runs the CLI. Errors are printed once, here.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
