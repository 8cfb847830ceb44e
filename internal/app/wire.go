package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/liquidmind-ai/tradesentinel/internal/blob/s3"
	"github.com/liquidmind-ai/tradesentinel/internal/cache/redis"
	"github.com/liquidmind-ai/tradesentinel/internal/config"
	"github.com/liquidmind-ai/tradesentinel/internal/crypto"
	"github.com/liquidmind-ai/tradesentinel/internal/dataset"
	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/notify"
	"github.com/liquidmind-ai/tradesentinel/internal/platform/gemini"
	"github.com/liquidmind-ai/tradesentinel/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. Optional dependencies stay nil when the
// configuration does not enable them.
type Dependencies struct {
	// Stores
	ShipmentStore domain.ShipmentStore
	AnomalyStore  domain.AnomalyStore
	ReportStore   domain.ReportStore
	AuditStore    domain.AuditStore

	// Caches
	VerdictCache domain.VerdictCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.ReportArchiver

	// Dataset source for audit runs.
	Source domain.ShipmentSource

	// Gemini API client (nil when the semantic layer is disabled).
	Gemini *gemini.Client

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true when the configuration requires a database
// connection: the API modes always do, and audit mode does whenever it
// persists the dataset or reads it from the database.
func needsPostgres(cfg *config.Config) bool {
	switch cfg.Mode {
	case "server", "full":
		return true
	}
	return cfg.Dataset.Persist || cfg.Dataset.Source == "postgres"
}

// needsS3 returns true when the configuration requires object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Dataset.Source == "s3" || cfg.Report.Archive
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.ShipmentStore = postgres.NewShipmentStore(pool)
		deps.AnomalyStore = postgres.NewAnomalyStore(pool)
		deps.ReportStore = postgres.NewReportStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	verdictTTL := cfg.Semantic.CacheTTL.Duration
	if verdictTTL <= 0 {
		verdictTTL = 7 * 24 * time.Hour
	}
	deps.VerdictCache = redis.NewVerdictCache(redisClient, verdictTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if cfg.Report.Archive {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.AuditStore)
		}
	}

	// --- Dataset source ---
	switch cfg.Dataset.Source {
	case "file":
		deps.Source = dataset.NewFileSource(cfg.Dataset.Path, logger)
	case "s3":
		deps.Source = dataset.NewBlobSource(deps.BlobReader, cfg.Dataset.S3Key, logger)
	case "postgres":
		deps.Source = deps.ShipmentStore
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unsupported dataset source %q", cfg.Dataset.Source)
	}

	// --- Gemini ---
	if cfg.Semantic.Enabled {
		apiKey, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:     cfg.Gemini.ApiKey,
			EncryptedPath: cfg.Gemini.EncryptedKeyPath,
			Password:      cfg.Gemini.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: gemini api key: %w", err)
		}
		deps.Gemini = gemini.NewClient(
			cfg.Gemini.BaseURL,
			cfg.Gemini.Model,
			apiKey,
			cfg.Gemini.Timeout.Duration,
			cfg.Gemini.MaxRetries,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
