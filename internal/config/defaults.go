package config

import (
	"github.com/platformbuilds/mirador-watchdog/internal/classify"
	"github.com/platformbuilds/mirador-watchdog/internal/impact"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
	"github.com/platformbuilds/mirador-watchdog/internal/series"
)

// GetDefaultConfig returns a configuration suitable for local development.
func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Port:        8010,
		LogLevel:    "info",
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Server: ServerConfig{
			Mode:            "release",
			ReadTimeout:     30,
			WriteTimeout:    60,
			ShutdownTimeout: 15,
			MaxBodyBytes:    16 << 20,
		},
		Classification: ClassificationConfig{
			WarningLower:    classify.DefaultWarningLower,
			WarningUpper:    classify.DefaultWarningUpper,
			Critical:        classify.DefaultCriticalThreshold,
			ReversedMetrics: append([]string(nil), classify.DefaultReversedMetrics...),
			Hourly: HourlyConfig{
				Critical:        classify.DefaultSustainedCritical,
				MinForecastRank: classify.DefaultMinForecastRank,
			},
		},
		Impact: impact.DefaultPolicy(),
		History: HistoryConfig{
			MinObservations: series.DefaultMinObservations,
			SustainedWindow: series.DefaultSustainedWindow,
			Timezone:        "UTC",
		},
		Evaluation: EvaluationConfig{
			Concurrency:   4,
			MaxHighlights: 3,
			ResultTTL:     24 * 3600,
		},
		Kpis: models.DefaultKpis(),
		Cache: CacheConfig{
			Nodes:         []string{"localhost:6379"},
			TTL:           24 * 3600,
			MemorySize:    1024,
			RetryInterval: 30,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "mirador-watchdog",
		},
	}
}
