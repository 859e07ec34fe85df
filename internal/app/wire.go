package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/defiwatchbot/defiwatch/internal/blob/s3"
	"github.com/defiwatchbot/defiwatch/internal/cache/redis"
	"github.com/defiwatchbot/defiwatch/internal/catalog"
	"github.com/defiwatchbot/defiwatch/internal/config"
	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/notify"
	"github.com/defiwatchbot/defiwatch/internal/platform/aave"
	"github.com/defiwatchbot/defiwatch/internal/platform/kamino"
	"github.com/defiwatchbot/defiwatch/internal/platform/telegram"
	"github.com/defiwatchbot/defiwatch/internal/scanner"
	"github.com/defiwatchbot/defiwatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Persistence
	Users domain.UserStore

	// Market catalog and protocol scanners
	Catalog  *catalog.Catalog
	Scanners *scanner.Registry

	// Messaging
	Telegram *telegram.Client
	Notifier *notify.Notifier

	// Optional Redis-backed extras; nil when Redis is disabled.
	Policy      domain.NotifyPolicy
	RateLimiter domain.RateLimiter

	// Optional blob storage for sweep archives; nil when S3 is disabled.
	BlobWriter domain.BlobWriter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	deps.Users = postgres.NewUserStore(pgClient.Pool())

	// --- Redis (optional) ---
	var catalogCache domain.CatalogCache
	if cfg.Redis.Enabled {
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

		catalogCache = redis.NewCatalogCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		if cfg.Watch.DebounceEnabled {
			deps.Policy = redis.NewDebouncePolicy(redisClient, cfg.Watch.DebounceTTL.Duration)
		}
	}

	// --- Protocol clients ---
	kaminoClient := kamino.NewClient(cfg.Kamino.BaseURL)

	aaveClients := make([]*aave.Client, 0, len(cfg.Aave.Networks))
	for _, n := range cfg.Aave.Networks {
		client, err := aave.NewClient(aave.NetworkConfig{
			Name:         n.Name,
			Pool:         n.Pool,
			DataProvider: n.DataProvider,
			Endpoints:    n.RPCEndpoints,
			CallTimeout:  n.CallTimeout.Duration,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: aave: %w", err)
		}
		aaveClients = append(aaveClients, client)
	}

	// --- Market catalog ---
	sources := []catalog.MarketSource{catalog.NewKaminoSource(kaminoClient)}
	for _, client := range aaveClients {
		sources = append(sources, catalog.NewAaveSource(client))
	}
	deps.Catalog = catalog.New(sources, catalogCache, logger)

	// --- Scanners ---
	deps.Scanners = scanner.NewRegistry(
		scanner.NewKaminoScanner(kaminoClient, deps.Catalog, logger),
		scanner.NewAaveScanner(aaveClients, deps.Catalog, logger),
	)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
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
	}

	// --- Messaging ---
	if cfg.Telegram.BotToken != "" {
		if cfg.Telegram.BaseURL != "" {
			deps.Telegram = telegram.NewClientWithBaseURL(cfg.Telegram.BotToken, cfg.Telegram.BaseURL)
		} else {
			deps.Telegram = telegram.NewClient(cfg.Telegram.BotToken)
		}
	}

	var senders []notify.Sender
	if deps.Telegram != nil {
		senders = append(senders, notify.NewTelegramSender(deps.Telegram))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	return deps, cleanup, nil
}
