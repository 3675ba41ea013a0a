package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads configuration with priority order:
//  1. Environment variables (WATCHDOG_ prefix, "." becomes "_")
//  2. Configuration file (path, WATCHDOG_CONFIG_PATH, or config.yaml on the search path)
//  3. Default values
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("WATCHDOG_CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mirador-watchdog/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WATCHDOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// Lists from the environment are split on commas without trimming.
	cfg.Cache.Nodes = splitList(cfg.Cache.Nodes)
	cfg.Classification.ReversedMetrics = splitList(cfg.Classification.ReversedMetrics)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("environment", d.Environment)
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("auth.jwt.enabled", d.Auth.JWT.Enabled)
	v.SetDefault("auth.jwt.secret", d.Auth.JWT.Secret)
	v.SetDefault("auth.jwt.issuer", d.Auth.JWT.Issuer)

	v.SetDefault("classification.warning_lower", d.Classification.WarningLower)
	v.SetDefault("classification.warning_upper", d.Classification.WarningUpper)
	v.SetDefault("classification.critical", d.Classification.Critical)
	v.SetDefault("classification.reversed_metrics", d.Classification.ReversedMetrics)
	v.SetDefault("classification.hourly.critical", d.Classification.Hourly.Critical)
	v.SetDefault("classification.hourly.min_forecast_rank", d.Classification.Hourly.MinForecastRank)

	p := d.Impact
	v.SetDefault("impact.ads_source", p.AdsSource)
	v.SetDefault("impact.analytics_source", p.AnalyticsSource)
	v.SetDefault("impact.commerce_source", p.CommerceSource)
	v.SetDefault("impact.social_source", p.SocialSource)
	v.SetDefault("impact.ads_dimension", p.AdsDimension)
	v.SetDefault("impact.ads_dim_label", p.AdsDimLabel)
	v.SetDefault("impact.subscription_dimension", p.SubscriptionDimension)
	v.SetDefault("impact.subscription_dim_label", p.SubscriptionDimLabel)
	v.SetDefault("impact.revenue_metric", p.RevenueMetric)
	v.SetDefault("impact.cancellation_metric", p.CancellationMetric)
	v.SetDefault("impact.cost_of_sale_metric", p.CostOfSaleMetric)
	v.SetDefault("impact.revenue_metrics", p.RevenueMetrics)
	v.SetDefault("impact.cap_multiplier", p.CapMultiplier)

	v.SetDefault("history.min_observations", d.History.MinObservations)
	v.SetDefault("history.sustained_window", d.History.SustainedWindow)
	v.SetDefault("history.timezone", d.History.Timezone)

	v.SetDefault("catalogue.path", d.Catalogue.Path)
	v.SetDefault("catalogue.watch", d.Catalogue.Watch)

	v.SetDefault("evaluation.concurrency", d.Evaluation.Concurrency)
	v.SetDefault("evaluation.max_highlights", d.Evaluation.MaxHighlights)
	v.SetDefault("evaluation.include_leaf_roots", d.Evaluation.IncludeLeafRoots)
	v.SetDefault("evaluation.result_ttl", d.Evaluation.ResultTTL)

	kpis := make([]map[string]string, 0, len(d.Kpis))
	for _, k := range d.Kpis {
		kpis = append(kpis, map[string]string{
			"data_source": k.DataSource,
			"dimension":   k.Dimension,
			"dim_label":   k.DimLabel,
			"metric":      k.Metric,
		})
	}
	v.SetDefault("kpis", kpis)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.nodes", d.Cache.Nodes)
	v.SetDefault("cache.password", d.Cache.Password)
	v.SetDefault("cache.db", d.Cache.DB)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.memory_size", d.Cache.MemorySize)
	v.SetDefault("cache.retry_interval", d.Cache.RetryInterval)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Validate applies the struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Classification.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: classification: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Classification.SustainedRule().Validate(); err != nil {
		return fmt.Errorf("%w: classification.hourly: %v", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(cfg.History.Timezone); err != nil {
		return fmt.Errorf("%w: history.timezone: %v", ErrInvalidConfig, err)
	}
	if cfg.Environment == "production" && cfg.Server.Mode == "debug" {
		return fmt.Errorf("%w: server.mode debug is not allowed in production", ErrInvalidConfig)
	}
	if cfg.Auth.JWT.Enabled && len(cfg.Auth.JWT.Secret) < 16 {
		return fmt.Errorf("%w: auth.jwt.secret must be at least 16 bytes", ErrInvalidConfig)
	}
	return nil
}

// Location returns the configured history time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// splitList trims every element, drops empty ones and splits any element that
// still holds a comma separated list.
func splitList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
