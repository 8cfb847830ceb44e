package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SENTINEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SENTINEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Dataset ──
	setStr(&cfg.Dataset.Source, "SENTINEL_DATASET_SOURCE")
	setStr(&cfg.Dataset.Path, "SENTINEL_DATASET_PATH")
	setStr(&cfg.Dataset.S3Key, "SENTINEL_DATASET_S3_KEY")
	setBool(&cfg.Dataset.Persist, "SENTINEL_DATASET_PERSIST")

	// ── Rules ──
	setFloat64(&cfg.Rules.FOBTolerancePct, "SENTINEL_RULES_FOB_TOLERANCE_PCT")
	setFloat64(&cfg.Rules.FOBCriticalGapUSD, "SENTINEL_RULES_FOB_CRITICAL_GAP_USD")
	setFloat64(&cfg.Rules.DrawbackMultiplier, "SENTINEL_RULES_DRAWBACK_MULTIPLIER")
	setFloat64(&cfg.Rules.FreightFlatImpactUSD, "SENTINEL_RULES_FREIGHT_FLAT_IMPACT_USD")
	setFloat64(&cfg.Rules.InsuranceMinRatePct, "SENTINEL_RULES_INSURANCE_MIN_RATE_PCT")
	setFloat64(&cfg.Rules.InsuranceMaxRatePct, "SENTINEL_RULES_INSURANCE_MAX_RATE_PCT")

	// ── Stats ──
	setFloat64(&cfg.Stats.ZThreshold, "SENTINEL_STATS_Z_THRESHOLD")
	setFloat64(&cfg.Stats.HighZ, "SENTINEL_STATS_HIGH_Z")
	setFloat64(&cfg.Stats.CriticalZ, "SENTINEL_STATS_CRITICAL_Z")
	setInt(&cfg.Stats.MinGroupSize, "SENTINEL_STATS_MIN_GROUP_SIZE")

	// ── Semantic ──
	setBool(&cfg.Semantic.Enabled, "SENTINEL_SEMANTIC_ENABLED")
	setDuration(&cfg.Semantic.Timeout, "SENTINEL_SEMANTIC_TIMEOUT")
	setFloat64(&cfg.Semantic.MismatchImpactUSD, "SENTINEL_SEMANTIC_MISMATCH_IMPACT_USD")
	setInt(&cfg.Semantic.MaxUniquePairs, "SENTINEL_SEMANTIC_MAX_UNIQUE_PAIRS")
	setDuration(&cfg.Semantic.CacheTTL, "SENTINEL_SEMANTIC_CACHE_TTL")

	// ── Gemini ──
	setStr(&cfg.Gemini.ApiKey, "SENTINEL_GEMINI_API_KEY")
	setStr(&cfg.Gemini.ApiKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.Gemini.EncryptedKeyPath, "SENTINEL_GEMINI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Gemini.KeyPassword, "SENTINEL_GEMINI_KEY_PASSWORD")
	setStr(&cfg.Gemini.BaseURL, "SENTINEL_GEMINI_BASE_URL")
	setStr(&cfg.Gemini.Model, "SENTINEL_GEMINI_MODEL")
	setDuration(&cfg.Gemini.Timeout, "SENTINEL_GEMINI_TIMEOUT")
	setInt(&cfg.Gemini.MaxRetries, "SENTINEL_GEMINI_MAX_RETRIES")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SENTINEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "SENTINEL_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SENTINEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SENTINEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SENTINEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SENTINEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SENTINEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SENTINEL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SENTINEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SENTINEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SENTINEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SENTINEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SENTINEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SENTINEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SENTINEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SENTINEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SENTINEL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SENTINEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SENTINEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "SENTINEL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SENTINEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SENTINEL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SENTINEL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SENTINEL_S3_FORCE_PATH_STYLE")

	// ── Report ──
	setStr(&cfg.Report.OutputDir, "SENTINEL_REPORT_OUTPUT_DIR")
	setInt(&cfg.Report.TopN, "SENTINEL_REPORT_TOP_N")
	setBool(&cfg.Report.Archive, "SENTINEL_REPORT_ARCHIVE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SENTINEL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SENTINEL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SENTINEL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "SENTINEL_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SENTINEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SENTINEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SENTINEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SENTINEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SENTINEL_MODE")
	setStr(&cfg.LogLevel, "SENTINEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
