// Package main is the entry point of the placement engine API.
//
// The binary serves the REST API. Run with the migrate subcommand to manage
// the PostgreSQL schema instead:
//
//	placement-engine migrate up|down|status
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/agepath/placement-engine/config"
	"github.com/agepath/placement-engine/internal/application/command"
	"github.com/agepath/placement-engine/internal/application/eventhandler"
	"github.com/agepath/placement-engine/internal/application/query"
	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/notification"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/internal/infrastructure/messaging"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/memory"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/postgres"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/redis"
	"github.com/agepath/placement-engine/internal/infrastructure/service"
	httpapi "github.com/agepath/placement-engine/internal/interface/http"
	"github.com/agepath/placement-engine/internal/interface/http/handlers"
	"github.com/agepath/placement-engine/pkg/circuitbreaker"
	"github.com/agepath/placement-engine/pkg/logger"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		err = runMigrate(ctx, os.Args[2:])
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus is what both bus implementations offer the wiring below.
type eventBus interface {
	shared.EventBus
	Close() error
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting placement engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("addr", cfg.HTTPAddr()),
		logger.Bool("memory_store", cfg.UsesMemoryStore()),
	)
	logFeatures(log, cfg.Features)

	policy := assessment.Policy{
		PromotionThreshold: cfg.Assessment.PromotionThreshold,
		LessonsPerLevel:    cfg.Assessment.LessonsPerLevel,
		Bands:              assessment.DefaultBandThresholds(),
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid assessment policy: %w", err)
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.SetTimeout(cfg.Observability.HealthCheckTimeout)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		store assessment.Store
		dir   directory.Directory
		sink  notification.Sink
	)

	if cfg.UsesMemoryStore() {
		log.Warn("DATABASE_URL not set, using the in-memory store")
		memStore, memDir := memory.NewStore(), memory.NewDirectory()
		if cfg.App.DevSeedFile == "" {
			log.Warn("DEV_SEED_FILE not set, the directory and level catalogue start empty")
		} else {
			counts, err := memory.LoadSeedFile(cfg.App.DevSeedFile, memStore, memDir, time.Now())
			if err != nil {
				return fmt.Errorf("failed to load dev seed: %w", err)
			}
			log.Info("dev seed loaded",
				logger.String("file", cfg.App.DevSeedFile),
				logger.Int("levels", counts.Levels),
				logger.Int("users", counts.Users),
				logger.Int("lessons", counts.Lessons),
			)
		}
		store, dir = memStore, memDir
	} else {
		conn, err := connectDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}

		store = postgres.NewStore(conn)
		dir = postgres.NewDirectory(conn)
		if cfg.Notifications.Sink == "postgres" {
			sink = postgres.NewNotificationSink(conn)
		}
		health.AddDetailedCheck("database", conn.CheckHealth)
	}

	if sink == nil {
		sink = service.NewLogSink(log.Slog())
	}
	breaker := circuitbreaker.NotificationSinkBreaker(
		cfg.Notifications.CircuitBreakerThreshold,
		cfg.Notifications.CircuitBreakerTimeout,
		service.LogStateChanges(log.Slog()),
	)
	sink = service.NewBreakerSink(sink, breaker)
	health.AddOptionalCheck("notifications", handlers.NewBreakerCheck(breaker.IsOpen))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache     *redis.Cache
		gridCache *redis.GridCache
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redisConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, grid caching disabled", logger.Err(err))
		} else {
			defer func() { _ = cache.Close() }()
			gridCache = redis.NewGridCache(cache)
			health.AddOptionalCheck("cache", handlers.NewCacheCheck(cache))
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS & HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := newEventBus(cfg, cache, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	clock := timeutil.SystemClock{}
	notifier := eventhandler.NewNotificationHandler(dir, sink, cfg.Features, clock, log.Slog(),
		eventhandler.NotificationConfig{DeliveryTimeout: cfg.Notifications.DeliveryTimeout})
	if err := notifier.Register(bus); err != nil {
		return fmt.Errorf("failed to register notification handler: %w", err)
	}
	if gridCache != nil {
		if err := eventhandler.NewGridInvalidator(gridCache, log.Slog()).Register(bus); err != nil {
			return fmt.Errorf("failed to register grid invalidator: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	cmdDeps := command.Deps{
		Store:     store,
		Directory: dir,
		Publisher: bus,
		Policy:    policy,
		Toggles:   cfg.Features,
		Clock:     clock,
		Logger:    log,
	}
	qryDeps := query.Deps{
		Store:     store,
		Directory: dir,
		Policy:    policy,
		Clock:     clock,
		Logger:    log,
		CacheTTL:  cfg.Assessment.GridCacheTTL,
		Toggles:   cfg.Features,
	}
	if gridCache != nil {
		qryDeps.Cache = gridCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimit * 60
	httpCfg.Version = cfg.App.Version

	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		CreatePlacement:  command.NewCreatePlacementHandler(cmdDeps),
		RecordCompletion: command.NewRecordLessonCompletionHandler(cmdDeps),
		ApplyOverride:    command.NewApplyManualOverrideHandler(cmdDeps),
		ArchivePlacement: command.NewArchivePlacementHandler(cmdDeps),
		Levels:           command.NewLevelHandler(cmdDeps),
		Placements:       query.NewPlacementHandler(qryDeps),
		Grid:             query.NewBuildGridHandler(qryDeps),
		Logger:           log,
		HealthChecker:    health,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if server.IsRunning() {
		log.Info("stopping HTTP server", logger.Duration("uptime", server.Uptime()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("HTTP server shutdown failed", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("service", cfg.App.Name))
}

func logFeatures(log *logger.Logger, flags *config.FeatureFlags) {
	features := flags.GetAllFeatures()
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := features[name]
		log.Debug("feature flag",
			logger.String("feature", name),
			logger.Bool("enabled", f.Enabled),
			logger.Int("rollout_percent", f.RolloutPercent),
		)
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	dbCfg := postgres.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	dbCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// newEventBus builds the in-process bus, relayed through Redis Pub/Sub when
// the relay flag is on and Redis is reachable.
func newEventBus(cfg *config.Config, cache *redis.Cache, log *logger.Logger) (eventBus, error) {
	busLog := log.Slog().With("component", "event_bus")
	local := messaging.DefaultInMemoryEventBusConfig()
	local.AsyncMode = true
	local.WorkerPoolSize = cfg.Notifications.Workers
	local.Logger = busLog
	local.Middlewares = []messaging.Middleware{
		messaging.RecoveryMiddleware(busLog),
		messaging.LoggingMiddleware(busLog),
	}

	if cache == nil || !cfg.Features.RedisRelayEnabled() {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(cache.Client()),
		LocalBusConfig: local,
		Logger:         busLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis event relay: %w", err)
	}
	log.Info("event relay over Redis Pub/Sub enabled")
	return bus, nil
}
