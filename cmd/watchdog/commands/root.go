package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/classify"
	"github.com/platformbuilds/mirador-watchdog/internal/config"
	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/internal/impact"
	"github.com/platformbuilds/mirador-watchdog/internal/series"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

const Version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Watchdog - metric anomaly classification and root-cause trees",
	Long: `Watchdog grades metric slices against their forecast bands, estimates the
revenue each deviation is worth, and explains top-level anomalies with a pruned
tree of contributing metrics.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a config.yaml (default: WATCHDOG_CONFIG_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(catalogueCmd)
}

// loadConfig applies the --log-level override on top of the loaded configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	if cfg.Log.File == "" {
		return logger.New(cfg.LogLevel)
	}
	return logger.NewWithFile(cfg.LogLevel, &logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

// loadCatalogue returns the configured catalogue file, or the built-in one.
func loadCatalogue(cfg *config.Config) (*catalogue.Catalogue, error) {
	if cfg.Catalogue.Path == "" {
		return catalogue.Default(), nil
	}
	cat, err := catalogue.LoadFile(cfg.Catalogue.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	return cat, nil
}

// newEngine wires the classifier, estimator and catalogue store from cfg.
func newEngine(cfg *config.Config, store *catalogue.Store, log logger.Logger) (*evaluation.Engine, error) {
	classifier, err := classify.New(cfg.Classification.Thresholds(), cfg.Classification.ReversedMetrics,
		classify.WithSustainedRule(cfg.Classification.SustainedRule()))
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}
	return evaluation.NewEngine(evaluation.Options{
		Classifier: classifier,
		Estimator:  impact.New(cfg.Impact),
		Catalogues: store,
		AssemblerOptions: []series.Option{
			series.WithMinObservations(cfg.History.MinObservations),
			series.WithSustainedWindow(cfg.History.SustainedWindow),
			series.WithLocation(cfg.Location()),
		},
		Kpis:             cfg.Kpis,
		MaxHighlights:    cfg.Evaluation.MaxHighlights,
		Concurrency:      cfg.Evaluation.Concurrency,
		IncludeLeafRoots: cfg.Evaluation.IncludeLeafRoots,
	}, log), nil
}
