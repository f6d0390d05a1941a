package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lexis/internal/config"
	"lexis/internal/profile"
)

// app carries the state every subcommand shares once flags and config are resolved.
type app struct {
	configPath string
	logLevel   string

	cfg    config.AppConfig
	logger *slog.Logger
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "lexis",
		Short: "Tokenize documents into typed, normalized terms",
		Long: `Lexis turns raw document text into classified tokens (abbreviations,
possessives, terms), runs them through a configurable filter chain
(stopword removal, stemming, length limits) and hands the result to a
downstream consumer.

Examples:
  lexis analyze ./corpus
  lexis analyze --profile english --output ./out report.pdf
  lexis watch --profile english ./inbox
  lexis replay ./out
  lexis serve --listen :9090`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(logOut)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML or YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(a), newAnalyzeCmd(a), newWatchCmd(a), newReplayCmd(a))
	return root
}

func (a *app) init(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if envDir := os.Getenv("LEXIS_PROFILE_DIR"); envDir != "" {
		cfg.Paths.ProfileDir = envDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) openRegistry() (*profile.Registry, error) {
	registry, err := profile.NewRegistryWithDefaults(a.cfg.Paths.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("initialize profile registry: %w", err)
	}
	return registry, nil
}
