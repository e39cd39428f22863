// Package main is the entry point of the budget envelope hub process.
//
// The process wires the full write/read pipeline:
//   - event store and view repositories (PostgreSQL, or in-memory for dev)
//   - encryption key repository for per-account payload sealing
//   - event bus and sharded dispatcher feeding the projections
//   - Redis name index mirroring the uniqueness registries
//
// It has no network surface of its own; command and query handlers are
// assembled here and handed to whatever transport embeds the hub.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/budget-hub/budget-envelope-hub/config"
	"github.com/budget-hub/budget-envelope-hub/internal/application/command"
	"github.com/budget-hub/budget-envelope-hub/internal/application/eventhandler"
	"github.com/budget-hub/budget-envelope-hub/internal/application/query"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/messaging"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/memory"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/postgres"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/redis"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// Application bundles every command and query handler of the hub. A
// transport embedding the hub calls these; nothing else in this process
// does.
type Application struct {
	// Commands
	SignUp         *command.SignUpHandler
	RenameAccount  *command.RenameAccountHandler
	DeleteAccount  *command.DeleteAccountHandler
	CreateEnvelope *command.CreateEnvelopeHandler
	RenameEnvelope *command.RenameEnvelopeHandler
	CreditEnvelope *command.CreditEnvelopeHandler
	DebitEnvelope  *command.DebitEnvelopeHandler
	ChangeTarget   *command.ChangeTargetHandler
	DeleteEnvelope *command.DeleteEnvelopeHandler
	RewindEnvelope *command.RewindEnvelopeHandler
	ReplayEnvelope *command.ReplayEnvelopeHandler

	// Queries
	GetAccount    *query.GetAccountHandler
	GetEnvelope   *query.GetEnvelopeHandler
	ListEnvelopes *query.ListEnvelopesHandler
	GetHistory    *query.GetHistoryHandler
}

// logNotifier is the default Notifier: it logs integration events instead
// of delivering them anywhere. Real deployments swap in a broker-backed
// implementation.
type logNotifier struct {
	logger *slog.Logger
}

// Notify implements eventhandler.Notifier.
func (n *logNotifier) Notify(_ context.Context, event shared.Event) error {
	n.logger.Info("integration event",
		"type", event.EventType(),
		"stream_id", event.AggregateID(),
		"request_id", event.RequestID(),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting budget envelope hub",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE (PostgreSQL or in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		store         shared.EventStore
		envelopeViews projection.EnvelopeViewRepository
		accountViews  projection.AccountViewRepository
		keyRepo       crypto.KeyRepository
	)

	if cfg.Database.InMemory {
		log.Warn("using in-memory persistence, all state is lost on exit")
		store = memory.NewEventStore()
		envelopeViews = memory.NewEnvelopeViewRepository()
		accountViews = memory.NewAccountViewRepository()
		keyRepo = crypto.NewMemoryKeyRepository()
	} else {
		log.Info("connecting to database...")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")

		store = postgres.NewEventStore(conn)
		envelopeViews = postgres.NewEnvelopeViewRepository(conn)
		accountViews = postgres.NewAccountViewRepository(conn)
		keyRepo = postgres.NewKeyRepository(conn)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS NAME INDEX (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var nameCache *redis.NameCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}

		client, err := redis.NewClient(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, name index disabled", "error", err)
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = client.Close()
			}()
			nameCache = redis.NewNameCache(client)
			log.Info("Redis connection established")
		}
	}

	// The pre-check port stays a nil interface when the cache is absent.
	var nameChecker command.NameChecker
	if nameCache != nil {
		nameChecker = nameCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS AND DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	// The bus runs synchronously: its only subscriber is the dispatcher,
	// whose Dispatch just enqueues into a buffered lane. A bus goroutine
	// per publish would race same-stream events ahead of the lane and
	// break per-stream delivery order.
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.AsyncMode = false
	busConfig.WorkerPoolSize = cfg.Bus.Workers
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)

	retryConfig := messaging.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.Bus.MaxRetries
	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		Shards:              cfg.Bus.Lanes,
		Retry:               retryConfig,
		DeadLetterQueueSize: cfg.Bus.DeadLetterCapacity,
		Logger:              log,
	})

	if err := bus.SubscribeAll(dispatcher.HandleEvent); err != nil {
		return fmt.Errorf("failed to subscribe dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. PROJECTIONS
	// ─────────────────────────────────────────────────────────────────────────
	dispatcher.Register(eventhandler.NewEnvelopeProjector(envelopeViews, &logNotifier{logger: log}, log))
	dispatcher.Register(eventhandler.NewAccountProjector(accountViews))
	if nameCache != nil {
		dispatcher.Register(eventhandler.NewNameIndexProjector(nameCache, log))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. COMMAND AND QUERY HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.RealClock{}
	app := &Application{
		SignUp:         command.NewSignUpHandler(store, bus, keyRepo, clock),
		RenameAccount:  command.NewRenameAccountHandler(store, bus, keyRepo, clock),
		DeleteAccount:  command.NewDeleteAccountHandler(store, bus, keyRepo, clock),
		CreateEnvelope: command.NewCreateEnvelopeHandler(store, bus, keyRepo, nameChecker, clock, log),
		RenameEnvelope: command.NewRenameEnvelopeHandler(store, bus, keyRepo, clock),
		CreditEnvelope: command.NewCreditEnvelopeHandler(store, bus, keyRepo, clock),
		DebitEnvelope:  command.NewDebitEnvelopeHandler(store, bus, keyRepo, clock),
		ChangeTarget:   command.NewChangeTargetHandler(store, bus, keyRepo, clock),
		DeleteEnvelope: command.NewDeleteEnvelopeHandler(store, bus, keyRepo, clock),
		RewindEnvelope: command.NewRewindEnvelopeHandler(store, bus, keyRepo, clock),
		ReplayEnvelope: command.NewReplayEnvelopeHandler(store, bus, keyRepo, clock),

		GetAccount:    query.NewGetAccountHandler(accountViews, keyRepo),
		GetEnvelope:   query.NewGetEnvelopeHandler(envelopeViews, keyRepo),
		ListEnvelopes: query.NewListEnvelopesHandler(envelopeViews, keyRepo),
		GetHistory:    query.NewGetHistoryHandler(store),
	}

	// Suppress unused variable warning until a transport embeds the hub
	_ = app

	log.Info("budget envelope hub is ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received", "timeout", cfg.App.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		defer close(done)

		// Stop accepting publishes first, then drain the delivery lanes.
		if err := bus.Close(); err != nil {
			log.Error("event bus close failed", "error", err)
		}
		if err := dispatcher.Close(); err != nil {
			log.Error("dispatcher close failed", "error", err)
		}
		if n := dispatcher.DeadLetters().Len(); n > 0 {
			log.Warn("undelivered events parked in dead letter queue", "count", n)
		}
	}()

	select {
	case <-done:
		log.Info("shutdown complete")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Error("shutdown timed out, exiting anyway")
	}
	return nil
}

// setupLogger builds the process logger: JSON in production, text with
// debug level everywhere else.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With("app", cfg.App.Name)
	slog.SetDefault(logger)
	return logger
}
