// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LOGOCRAWLER_HTTP_TIMEOUT.
const EnvPrefix = "LOGOCRAWLER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// CrawlerConfig governs the worker pool and job-level limits.
type CrawlerConfig struct {
	// Workers overrides the pool size when > 0.
	Workers          int           `mapstructure:"workers"`
	DomainsPerWorker int           `mapstructure:"domains_per_worker"`
	UserAgent        string        `mapstructure:"user_agent"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`

	// RateLimitMaxHosts caps how many per-host buckets are kept; <= 0 uses the limiter default.
	RateLimitMaxHosts int `mapstructure:"rate_limit_max_hosts"`
}

// HTTPConfig configures the fetcher and its retry behavior.
type HTTPConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BackoffBase        time.Duration `mapstructure:"backoff_base"`
	BackoffMax         time.Duration `mapstructure:"backoff_max"`
	Jitter             bool          `mapstructure:"jitter"`
	Scheme             string        `mapstructure:"scheme"`
	MaxBodyBytes       int           `mapstructure:"max_body_bytes"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// ExtractConfig bounds structured-data parsing and toggles the favicon guess.
// FaviconFallback defaults to true, so a page with neither structured data nor
// icon links is labeled favicon with https://<domain>/favicon.ico. Set it to
// false to label such pages none instead.
type ExtractConfig struct {
	MaxJSONDepth    int  `mapstructure:"max_json_depth"`
	MaxJSONNodes    int  `mapstructure:"max_json_nodes"`
	FaviconFallback bool `mapstructure:"favicon_fallback"`
}

// OutputConfig selects the record writer and destination.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	// Path is the output file; empty means stdout.
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features and the optional log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// PostgresConfig enables the record store when DSN is set.
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
	MaxConns  int32  `mapstructure:"max_conns"`
}

// Load builds a Config from disk/environment. With an empty path, a
// config.yaml is looked up in the working directory, /etc/logocrawler and
// $HOME/.logocrawler; finding none is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logocrawler/")
		v.AddConfigPath("$HOME/.logocrawler")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", 0)
	v.SetDefault("crawler.domains_per_worker", 50)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.job_timeout", 0)
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("crawler.rate_limit_max_hosts", 10000)
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_base", time.Second)
	v.SetDefault("http.backoff_max", 30*time.Second)
	v.SetDefault("http.jitter", true)
	v.SetDefault("http.scheme", "https")
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("extract.max_json_depth", 64)
	v.SetDefault("extract.max_json_nodes", 20000)
	v.SetDefault("extract.favicon_fallback", true)
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.path", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "logo_records")
	v.SetDefault("postgres.runs_table", "crawl_runs")
	v.SetDefault("postgres.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers < 0 {
		return errors.New("crawler.workers must be >= 0")
	}
	if c.Crawler.DomainsPerWorker <= 0 {
		return errors.New("crawler.domains_per_worker must be > 0")
	}
	if c.Crawler.JobTimeout < 0 {
		return errors.New("crawler.job_timeout must be >= 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return errors.New("crawler.rate_limit_rps must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return errors.New("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffBase <= 0 {
		return errors.New("http.backoff_base must be > 0")
	}
	if c.HTTP.BackoffMax < c.HTTP.BackoffBase {
		return errors.New("http.backoff_max must be >= http.backoff_base")
	}
	if c.HTTP.Scheme != "http" && c.HTTP.Scheme != "https" {
		return fmt.Errorf("http.scheme must be http or https, got %q", c.HTTP.Scheme)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be > 0")
	}
	if c.Extract.MaxJSONDepth <= 0 || c.Extract.MaxJSONNodes <= 0 {
		return errors.New("extract.max_json_depth and extract.max_json_nodes must be > 0")
	}
	switch c.Output.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("output.format must be csv or xlsx, got %q", c.Output.Format)
	}
	if c.Output.Format == "xlsx" && c.Output.Path == "" {
		return errors.New("output.path is required for xlsx output")
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be > 0 when logging.file is set")
	}
	if c.Postgres.DSN != "" && c.Postgres.MaxConns <= 0 {
		return errors.New("postgres.max_conns must be > 0 when postgres.dsn is set")
	}
	return nil
}
