// counsel assists a live conversation: it streams transcript fragments
// through a set of expert personas and prints their merged, attributed
// suggestions.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"counsel/internal/config"
	"counsel/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded per invocation by PersistentPreRunE
	cfg *config.Config

	// Command-level logger; the engine packages log through the category
	// facade instead.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "counsel - multi-persona live conversation assistant",
	Long: `counsel turns a stream of speech-transcript fragments into short,
attributed suggestions from up to four expert personas.

Each persona has its own instructions and a private slice of the knowledge
base. For every finalized fragment, eligible personas independently retrieve
supporting passages, generate a suggestion (or stay silent), and identical
answers are merged with shared attribution.

Feed transcripts on stdin or from a file:

  counsel ingest ./kb
  counsel run --file meeting.jsonl
  echo "What's our pricing?" | counsel run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		categories := cfg.Logging.Categories
		if verbose {
			categories = "all"
		}
		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Level, categories); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func defaultConfigPath() string {
	if env := os.Getenv("COUNSEL_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "counsel.yaml"
	}
	return filepath.Join(home, ".counsel", "config.yaml")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
