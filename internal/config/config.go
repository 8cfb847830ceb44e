// Package config defines the top-level configuration for the trade sentinel
// audit pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SENTINEL_* environment variables.
type Config struct {
	Dataset  DatasetConfig  `toml:"dataset"`
	Rules    RulesConfig    `toml:"rules"`
	Stats    StatsConfig    `toml:"stats"`
	Semantic SemanticConfig `toml:"semantic"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Report   ReportConfig   `toml:"report"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatasetConfig selects where audit runs load shipment records from.
type DatasetConfig struct {
	// Source is "file", "s3", or "postgres".
	Source string `toml:"source"`
	Path   string `toml:"path"`
	S3Key  string `toml:"s3_key"`
	// Persist mirrors loaded records into postgres for later API queries.
	Persist bool `toml:"persist"`
}

// RulesConfig holds the per-check parameters of the deterministic rule layer.
type RulesConfig struct {
	FOBTolerancePct      float64 `toml:"fob_tolerance_pct"`
	FOBCriticalGapUSD    float64 `toml:"fob_critical_gap_usd"`
	DrawbackMultiplier   float64 `toml:"drawback_multiplier"`
	FreightFlatImpactUSD float64 `toml:"freight_flat_impact_usd"`
	InsuranceMinRatePct  float64 `toml:"insurance_min_rate_pct"`
	InsuranceMaxRatePct  float64 `toml:"insurance_max_rate_pct"`
	InsuranceExtremeFact float64 `toml:"insurance_extreme_factor"`
}

// StatsConfig holds the Z-score layer thresholds and flat impacts.
type StatsConfig struct {
	ZThreshold             float64 `toml:"z_threshold"`
	HighZ                  float64 `toml:"high_z"`
	CriticalZ              float64 `toml:"critical_z"`
	MinGroupSize           int     `toml:"min_group_size"`
	TransitImpactUSD       float64 `toml:"transit_impact_usd"`
	PaymentImpactUSD       float64 `toml:"payment_impact_usd"`
	BuyerVolumeImpactUSD   float64 `toml:"buyer_volume_impact_usd"`
	CountryVolumeImpactUSD float64 `toml:"country_volume_impact_usd"`
}

// SemanticConfig holds the LLM layer limits. The layer can be disabled
// entirely; runs then complete on the first two layers alone.
type SemanticConfig struct {
	Enabled           bool     `toml:"enabled"`
	Timeout           duration `toml:"timeout"`
	MismatchImpactUSD float64  `toml:"mismatch_impact_usd"`
	MaxUniquePairs    int      `toml:"max_unique_pairs"`
	CacheTTL          duration `toml:"cache_ttl"`
}

// GeminiConfig holds Gemini API credentials and endpoints.
type GeminiConfig struct {
	ApiKey           string   `toml:"api_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	BaseURL          string   `toml:"base_url"`
	Model            string   `toml:"model"`
	Timeout          duration `toml:"timeout"`
	MaxRetries       int      `toml:"max_retries"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReportConfig holds report output parameters.
type ReportConfig struct {
	OutputDir string `toml:"output_dir"`
	TopN      int    `toml:"top_n"`
	// Archive uploads finished reports to the S3 bucket.
	Archive bool `toml:"archive"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Dataset: DatasetConfig{
			Source:  "file",
			Path:    "data/shipments.csv",
			S3Key:   "datasets/shipments.csv",
			Persist: true,
		},
		Rules: RulesConfig{
			FOBTolerancePct:      5.0,
			FOBCriticalGapUSD:    1000.0,
			DrawbackMultiplier:   3.0,
			FreightFlatImpactUSD: 2000.0,
			InsuranceMinRatePct:  0.1,
			InsuranceMaxRatePct:  2.0,
			InsuranceExtremeFact: 5.0,
		},
		Stats: StatsConfig{
			ZThreshold:             2.5,
			HighZ:                  3.0,
			CriticalZ:              4.0,
			MinGroupSize:           3,
			TransitImpactUSD:       5000.0,
			PaymentImpactUSD:       2500.0,
			BuyerVolumeImpactUSD:   10000.0,
			CountryVolumeImpactUSD: 10000.0,
		},
		Semantic: SemanticConfig{
			Enabled:           true,
			Timeout:           duration{60 * time.Second},
			MismatchImpactUSD: 6000.0,
			MaxUniquePairs:    200,
			CacheTTL:          duration{7 * 24 * time.Hour},
		},
		Gemini: GeminiConfig{
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			Model:      "gemini-1.5-flash",
			Timeout:    duration{30 * time.Second},
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "tradesentinel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "sentinel-reports",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Report: ReportConfig{
			OutputDir: "output",
			TopN:      5,
			Archive:   false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"run_completed", "critical_anomaly", "semantic_failed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"audit":  true,
	"server": true,
	"full":   true,
}

// validSources enumerates the accepted values for DatasetConfig.Source.
var validSources = map[string]bool{
	"file":     true,
	"s3":       true,
	"postgres": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: audit, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Dataset
	if !validSources[strings.ToLower(c.Dataset.Source)] {
		errs = append(errs, fmt.Sprintf("dataset: unknown source %q (valid: file, s3, postgres)", c.Dataset.Source))
	}
	if strings.ToLower(c.Dataset.Source) == "file" && c.Dataset.Path == "" {
		errs = append(errs, "dataset: path must not be empty for source \"file\"")
	}
	if strings.ToLower(c.Dataset.Source) == "s3" && c.Dataset.S3Key == "" {
		errs = append(errs, "dataset: s3_key must not be empty for source \"s3\"")
	}

	// Rules
	if c.Rules.FOBTolerancePct <= 0 {
		errs = append(errs, "rules: fob_tolerance_pct must be > 0")
	}
	if c.Rules.DrawbackMultiplier <= 0 {
		errs = append(errs, "rules: drawback_multiplier must be > 0")
	}
	if c.Rules.InsuranceMinRatePct <= 0 || c.Rules.InsuranceMaxRatePct <= c.Rules.InsuranceMinRatePct {
		errs = append(errs, "rules: insurance rate band must satisfy 0 < min < max")
	}

	// Stats
	if c.Stats.ZThreshold <= 0 {
		errs = append(errs, "stats: z_threshold must be > 0")
	}
	if c.Stats.HighZ < c.Stats.ZThreshold || c.Stats.CriticalZ < c.Stats.HighZ {
		errs = append(errs, "stats: severity thresholds must satisfy z_threshold <= high_z <= critical_z")
	}
	if c.Stats.MinGroupSize < 3 {
		errs = append(errs, "stats: min_group_size must be >= 3")
	}

	// Gemini — needed when the semantic layer is on.
	if c.Semantic.Enabled {
		if c.Gemini.ApiKey == "" && c.Gemini.EncryptedKeyPath == "" {
			errs = append(errs, "gemini: either api_key or encrypted_key_path must be set when semantic layer is enabled")
		}
		if c.Gemini.EncryptedKeyPath != "" && c.Gemini.KeyPassword == "" {
			errs = append(errs, "gemini: key_password is required when encrypted_key_path is set")
		}
		if c.Gemini.Model == "" {
			errs = append(errs, "gemini: model must not be empty")
		}
		if c.Gemini.MaxRetries < 1 {
			errs = append(errs, "gemini: max_retries must be >= 1")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — needed when the dataset or archive uses the bucket.
	if strings.ToLower(c.Dataset.Source) == "s3" || c.Report.Archive {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Report
	if c.Report.OutputDir == "" {
		errs = append(errs, "report: output_dir must not be empty")
	}
	if c.Report.TopN < 1 {
		errs = append(errs, "report: top_n must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
