package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig locates the source and instrument catalogs.
type CatalogConfig struct {
	SourcesPath       string `yaml:"sources_path" mapstructure:"sources_path"`
	InstrumentsPrefix string `yaml:"instruments_prefix" mapstructure:"instruments_prefix"`
}

// OutputConfig controls snapshot files.
type OutputConfig struct {
	Prefix      string `yaml:"prefix" mapstructure:"prefix"`
	Format      string `yaml:"format" mapstructure:"format"`
	OnCollision string `yaml:"on_collision" mapstructure:"on_collision"`
}

// ExtractConfig tunes fetching and extraction.
type ExtractConfig struct {
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	StartupDelayMs     int     `yaml:"startup_delay_ms" mapstructure:"startup_delay_ms"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	DefaultBid         string  `yaml:"default_bid" mapstructure:"default_bid"`
	DefaultCurrency    string  `yaml:"default_currency" mapstructure:"default_currency"`
	StrategiesFile     string  `yaml:"strategies_file" mapstructure:"strategies_file"`
	MetricsFile        string  `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// RetryConfig bounds retries of a single quote request.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the query service.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures ledger health checks and webhook alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent is the browser-like User-Agent sent with quote requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.sources_path", "data/sources.txt")
	v.SetDefault("catalog.instruments_prefix", "data/")
	v.SetDefault("output.prefix", "data/output/")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.on_collision", "fail")
	v.SetDefault("extract.concurrency", 8)
	v.SetDefault("extract.startup_delay_ms", 2000)
	v.SetDefault("extract.request_timeout_secs", 30)
	v.SetDefault("extract.rate_per_sec", 0)
	v.SetDefault("extract.user_agent", DefaultUserAgent)
	v.SetDefault("extract.default_bid", "0")
	v.SetDefault("extract.default_currency", "EUR")
	v.SetDefault("extract.strategies_file", "")
	v.SetDefault("extract.metrics_file", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "quotes.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Mode is "extract" or
// "serve"; output and store settings are checked for every mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch strings.ToLower(c.Output.Format) {
	case "csv", "xlsx":
	default:
		errs = append(errs, fmt.Sprintf("output.format must be csv or xlsx, got %q", c.Output.Format))
	}
	switch strings.ToLower(c.Output.OnCollision) {
	case "fail", "overwrite":
	default:
		errs = append(errs, fmt.Sprintf("output.on_collision must be fail or overwrite, got %q", c.Output.OnCollision))
	}
	if c.Output.Prefix == "" {
		errs = append(errs, "output.prefix is required")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for sqlite")
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or none, got %q", c.Store.Driver))
	}

	switch mode {
	case "extract":
		if c.Catalog.SourcesPath == "" {
			errs = append(errs, "catalog.sources_path is required")
		}
		if c.Extract.Concurrency <= 0 {
			errs = append(errs, fmt.Sprintf("extract.concurrency must be positive, got %d", c.Extract.Concurrency))
		}
		if c.Extract.RequestTimeoutSecs <= 0 {
			errs = append(errs, fmt.Sprintf("extract.request_timeout_secs must be positive, got %d", c.Extract.RequestTimeoutSecs))
		}
		if c.Extract.RatePerSec < 0 {
			errs = append(errs, fmt.Sprintf("extract.rate_per_sec must not be negative, got %g", c.Extract.RatePerSec))
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
