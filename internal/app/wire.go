package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/Engineer-Box/gmdemo/internal/blob/s3"
	"github.com/Engineer-Box/gmdemo/internal/cache/redis"
	"github.com/Engineer-Box/gmdemo/internal/config"
	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/ledger"
	"github.com/Engineer-Box/gmdemo/internal/notify"
	"github.com/Engineer-Box/gmdemo/internal/server/handler"
	"github.com/Engineer-Box/gmdemo/internal/service"
	"github.com/Engineer-Box/gmdemo/internal/store/postgres"
)

// Dependencies bundles every adapter the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Stores        service.Stores
	Roster        *postgres.RosterStore
	Transactions  domain.TransactionStore
	Notifications domain.NotificationStore

	// Redis
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    *redis.EventBus
	Fees        domain.FeeCounter
	Rankings    domain.RankingProjector

	// Archive is nil when S3 is disabled.
	Archive *s3blob.ReceiptArchive

	Ledger   domain.Ledger
	Notifier domain.Notifier

	// Health checks by dependency name.
	Health map[string]handler.Pinger
}

// pingFunc adapts a health check to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

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

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

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
	deps.Health["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Roster = postgres.NewRosterStore(pool)
	deps.Stores = service.Stores{
		Battles:    postgres.NewBattleStore(pool),
		Matches:    postgres.NewMatchStore(pool),
		Selections: postgres.NewSelectionStore(pool),
		Disputes:   postgres.NewDisputeStore(pool),
		Roster:     deps.Roster,
	}
	deps.Transactions = postgres.NewTransactionStore(pool)
	deps.Notifications = postgres.NewNotificationStore(pool)

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
	deps.Health["redis"] = redisClient

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient)
	deps.Fees = redis.NewFeeCounter(redisClient)
	deps.Rankings = redis.NewRankingProjector(redisClient)

	// --- S3 settlement archive ---
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
		deps.Archive = s3blob.NewReceiptArchive(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		deps.Health["s3"] = pingFunc(s3Client.Health)
	}

	deps.Ledger = ledger.NewEscrowLedger(deps.Transactions, deps.LockManager, logger)

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
	deps.Notifier = notify.NewNotifier(deps.Notifications, senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// Services are the battle engine services built over Dependencies.
type Services struct {
	Battles    *service.BattleService
	Scores     *service.ScoreService
	Settlement *service.SettlementService
	Sweeper    *service.Sweeper
}

// NewServices builds the engine services. Every service shares one lease so
// lifecycle, vote and settlement work on a battle is serialised.
func NewServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *Services {
	lease := service.NewBattleLease(deps.LockManager, cfg.Battle.LeaseTTL.Duration, cfg.Battle.LeaseWait.Duration)

	// A nil *ReceiptArchive must not become a non-nil interface.
	var archive domain.SettlementArchive
	if deps.Archive != nil {
		archive = deps.Archive
	}

	rosters := service.NewRosterService(deps.Stores, deps.Ledger, logger)
	battles := service.NewBattleService(deps.Stores, deps.Ledger, rosters, lease, deps.Notifier, deps.EventBus, logger)
	settlement := service.NewSettlementService(deps.Stores, deps.Ledger, deps.Fees, deps.Rankings, archive, lease, deps.Notifier, deps.EventBus, logger)
	scores := service.NewScoreService(deps.Stores, settlement, lease, deps.Notifier, deps.EventBus, logger)
	sweeper := service.NewSweeper(
		deps.Stores.Battles, deps.Stores.Matches, deps.Notifications, battles, scores,
		cfg.Battle.StaleVoteWindow.Duration, cfg.Notify.InboxRetention.Duration, cfg.Battle.SweepInterval.Duration,
		cfg.Battle.SweepBatch,
		logger,
	)
	return &Services{Battles: battles, Scores: scores, Settlement: settlement, Sweeper: sweeper}
}
