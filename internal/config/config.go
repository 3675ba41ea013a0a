package config

import (
	"github.com/platformbuilds/mirador-watchdog/internal/classify"
	"github.com/platformbuilds/mirador-watchdog/internal/impact"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// Config is the complete watchdog configuration.
type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment" validate:"oneof=development staging production test"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error fatal"`

	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Auth           AuthConfig           `mapstructure:"auth" yaml:"auth"`
	Classification ClassificationConfig `mapstructure:"classification" yaml:"classification"`
	Impact         impact.Policy        `mapstructure:"impact" yaml:"impact"`
	History        HistoryConfig        `mapstructure:"history" yaml:"history"`
	Catalogue      CatalogueConfig      `mapstructure:"catalogue" yaml:"catalogue"`
	Evaluation     EvaluationConfig     `mapstructure:"evaluation" yaml:"evaluation"`
	Kpis           []models.Kpi         `mapstructure:"kpis" yaml:"kpis" validate:"dive"`
	Cache          CacheConfig          `mapstructure:"cache" yaml:"cache"`
	Tracing        TracingConfig        `mapstructure:"tracing" yaml:"tracing"`
}

// LogConfig enables a rotated log file. An empty File logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig holds HTTP server timeouts in seconds.
type ServerConfig struct {
	Mode            string `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"`
	ReadTimeout     int    `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=1"`
	WriteTimeout    int    `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=1"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=1"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes" validate:"min=1024"`
}

type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig guards the evaluation API with HMAC-signed bearer tokens.
type JWTConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Secret  string `mapstructure:"secret" yaml:"secret" validate:"required_if=Enabled true"`
	Issuer  string `mapstructure:"issuer" yaml:"issuer"`
}

type ClassificationConfig struct {
	WarningLower    float64      `mapstructure:"warning_lower" yaml:"warning_lower"`
	WarningUpper    float64      `mapstructure:"warning_upper" yaml:"warning_upper"`
	Critical        float64      `mapstructure:"critical" yaml:"critical"`
	ReversedMetrics []string     `mapstructure:"reversed_metrics" yaml:"reversed_metrics"`
	Hourly          HourlyConfig `mapstructure:"hourly" yaml:"hourly"`
}

// HourlyConfig grades hourly slices over their trailing window.
type HourlyConfig struct {
	Critical        float64 `mapstructure:"critical" yaml:"critical" validate:"gt=0"`
	MinForecastRank float64 `mapstructure:"min_forecast_rank" yaml:"min_forecast_rank" validate:"min=0,max=1"`
}

// Thresholds returns the grading the classifier is built with.
func (c ClassificationConfig) Thresholds() classify.Thresholds {
	return classify.Thresholds{
		WarningLower: c.WarningLower,
		WarningUpper: c.WarningUpper,
		Critical:     c.Critical,
	}
}

// SustainedRule returns the hourly grading the classifier is built with.
func (c ClassificationConfig) SustainedRule() classify.SustainedRule {
	return classify.SustainedRule{
		Critical:        c.Hourly.Critical,
		MinForecastRank: c.Hourly.MinForecastRank,
	}
}

// HistoryConfig controls how raw series are cut into evaluation windows.
type HistoryConfig struct {
	MinObservations int    `mapstructure:"min_observations" yaml:"min_observations" validate:"min=1"`
	SustainedWindow int    `mapstructure:"sustained_window" yaml:"sustained_window" validate:"min=1"`
	Timezone        string `mapstructure:"timezone" yaml:"timezone" validate:"required"`
}

// CatalogueConfig points at the relationship catalogue file. An empty Path
// selects the built-in catalogue.
type CatalogueConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type EvaluationConfig struct {
	Concurrency      int  `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1,max=256"`
	MaxHighlights    int  `mapstructure:"max_highlights" yaml:"max_highlights" validate:"min=1"`
	IncludeLeafRoots bool `mapstructure:"include_leaf_roots" yaml:"include_leaf_roots"`
	// ResultTTL is how long stored results stay retrievable, in seconds.
	ResultTTL int `mapstructure:"result_ttl" yaml:"result_ttl" validate:"min=1"`
}

// CacheConfig selects the result store. Disabled or unreachable Valkey falls
// back to an in-process LRU.
type CacheConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Nodes         []string `mapstructure:"nodes" yaml:"nodes" validate:"required_if=Enabled true,dive,hostname_port"`
	Password      string   `mapstructure:"password" yaml:"password"`
	DB            int      `mapstructure:"db" yaml:"db" validate:"min=0,max=15"`
	TTL           int      `mapstructure:"ttl" yaml:"ttl" validate:"min=1"`
	MemorySize    int      `mapstructure:"memory_size" yaml:"memory_size" validate:"min=1"`
	RetryInterval int      `mapstructure:"retry_interval" yaml:"retry_interval" validate:"min=1"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" validate:"required"`
}
