package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openpredict/marketd/internal/auth"
	s3blob "github.com/openpredict/marketd/internal/blob/s3"
	"github.com/openpredict/marketd/internal/cache/redis"
	"github.com/openpredict/marketd/internal/config"
	"github.com/openpredict/marketd/internal/crypto"
	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/ledger"
	"github.com/openpredict/marketd/internal/notify"
	"github.com/openpredict/marketd/internal/oracle"
	"github.com/openpredict/marketd/internal/registry"
	"github.com/openpredict/marketd/internal/service"
	"github.com/openpredict/marketd/internal/store/postgres"
	"github.com/openpredict/marketd/internal/treasury"
	"github.com/openpredict/marketd/internal/vault"
)

// Dependencies bundles everything the daemon needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Service  *service.MarketService
	AdminKey string

	// Infrastructure handles the app layer needs directly.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

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

	pool := pgClient.Pool()
	marketStore := postgres.NewMarketStore(pool)
	positionStore := postgres.NewPositionStore(pool)
	treasuryStore := postgres.NewTreasuryStore(pool)
	auditStore := postgres.NewAuditStore(pool)

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

	locks := redis.NewLockManager(redisClient)
	bus := redis.NewSignalBus(redisClient)
	limiter := redis.NewRateLimiter(redisClient)

	// --- S3 settlement archive (optional) ---
	var archiver service.SettlementArchiver
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
		archiver = s3blob.NewSettlementArchiver(s3blob.NewWriter(s3Client))
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
	var notifier service.Notifier
	if len(senders) > 0 {
		events := make([]domain.EventType, 0, len(cfg.Notify.Events))
		for _, e := range cfg.Notify.Events {
			events = append(events, domain.EventType(strings.TrimSpace(e)))
		}
		notifier = notify.NewNotifier(senders, events, logger)
	}

	// --- Settlement oracle ---
	var priceOracle domain.PriceOracle
	switch cfg.Oracle.Mode {
	case "http":
		priceOracle = oracle.NewFeedClient(cfg.Oracle.FeedURL, nil)
		if ttl := cfg.Oracle.CacheTTLSeconds; ttl > 0 {
			cache := redis.NewReadingCache(redisClient, time.Duration(ttl)*time.Second)
			priceOracle = oracle.NewCached(priceOracle, cache, logger)
		}
	default:
		priceOracle = oracle.NewStatic(cfg.Oracle.Static)
	}

	// --- Administrator credential ---
	adminKey, err := crypto.LoadAdminKey(crypto.KeyConfig{
		RawKey:           cfg.Admin.APIKey,
		EncryptedKeyPath: cfg.Admin.EncryptedKeyPath,
		KeyPassword:      cfg.Admin.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: admin key: %w", err)
	}
	authz, err := auth.NewStaticKey(adminKey)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: authorizer: %w", err)
	}

	// --- Accounting core ---
	minStake, err := cfg.MinStakeAmount()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: min stake: %w", err)
	}

	custody := vault.NewMemory()
	fees := treasury.New(custody)
	reg := registry.New(ledger.Deps{
		Params: ledger.Params{
			MinStake: minStake,
			FeeBps:   cfg.Market.FeeBps,
		},
		Vault:  custody,
		Fees:   fees,
		Oracle: priceOracle,
		Now:    time.Now,
	})

	svc := service.New(service.Deps{
		Registry:  reg,
		Treasury:  fees,
		Vault:     custody,
		Funder:    custody,
		Authz:     authz,
		Admin:     cfg.AdminAccount(),
		Locks:     locks,
		Bus:       bus,
		Audit:     auditStore,
		Markets:   marketStore,
		Positions: positionStore,
		Fees:      treasuryStore,
		Archiver:  archiver,
		Notify:    notifier,
		Logger:    logger,
	})

	return &Dependencies{
		Service:     svc,
		AdminKey:    adminKey,
		SignalBus:   bus,
		RateLimiter: limiter,
	}, cleanup, nil
}
