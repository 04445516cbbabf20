// Package main is the entry point of the GritHabit HTTP API.
//
// The API records activities, manages goals and serves stats and
// achievements. Storage is selected by DB_DRIVER (postgres, sqlite or
// memory); Redis, when reachable, backs the stats cache, the verification
// store and cross-instance events.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/grithabit/grithabit/config"
	"github.com/grithabit/grithabit/internal/application/command"
	"github.com/grithabit/grithabit/internal/application/eventhandler"
	"github.com/grithabit/grithabit/internal/application/query"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/domain/verification"
	"github.com/grithabit/grithabit/internal/infrastructure/messaging"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/redis"
	"github.com/grithabit/grithabit/internal/infrastructure/scheduler"
	"github.com/grithabit/grithabit/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/grithabit/grithabit/internal/interface/http"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/retry"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// eventBus is what both bus implementations provide.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
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
	log := setupLogger(cfg).With(logger.Component("api"))
	defer func() { _ = log.Sync() }()

	log.Info("starting GritHabit API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("db_driver", cfg.Database.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection...")
		stores.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	statsRepo := stores.Stats
	var (
		redisCache   *redis.Cache
		cachedStats  *redis.CachedStatsRepository
		verifyStore  verification.Store
		memoryVerify *memory.VerificationStore
	)

	if !cfg.Redis.Disabled {
		redisCache, err = connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			cachedStats = redis.NewCachedStatsRepository(stores.Stats, redisCache, cfg.Redis.StatsCacheTTL, log)
			statsRepo = cachedStats
			verifyStore = redis.NewVerificationStore(redisCache, clock)
			log.Info("Redis connection established", logger.String("addr", cfg.Redis.Addr()))
		}
	}
	if verifyStore == nil {
		memoryVerify = memory.NewVerificationStore(clock)
		verifyStore = memoryVerify
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := newEventBus(ctx, redisCache, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	handlers := []eventhandler.Registrar{eventhandler.NewOnProgressHandler(log)}
	if cachedStats != nil {
		handlers = append(handlers, eventhandler.NewOnStatsChangedHandler(cachedStats, log))
	}
	if err := eventhandler.RegisterAll(bus, handlers...); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	catalog := gamification.DefaultCatalog()
	evaluator := gamification.NewEvaluator(catalog)

	handlerCfg := command.RecordActivityHandlerConfig{
		Location: cfg.App.Location,
		Clock:    clock,
		Logger:   log,
	}
	verifyCfg := command.VerificationConfig{
		TTL:         cfg.Verification.PINTTL,
		MaxAttempts: cfg.Verification.MaxAttempts,
		ExposePIN:   cfg.Verification.ExposePIN,
		Clock:       clock,
		Logger:      log,
	}
	queryCfg := query.Config{Location: cfg.App.Location, Clock: clock, Logger: log}

	deps := httpapi.Dependencies{
		RecordActivity: command.NewRecordActivityHandler(
			stores.Activities, stores.Goals, statsRepo, stores.Achievements, evaluator, bus, handlerCfg),
		CreateGoal:            command.NewCreateGoalHandler(stores.Goals, bus, clock, log),
		MarkAchievementShared: command.NewMarkAchievementSharedHandler(stores.Achievements, catalog, bus, log),
		RecomputeStats: command.NewRecomputeStatsHandler(
			stores.Activities, stores.Goals, statsRepo, stores.Achievements, evaluator, bus, handlerCfg),
		RequestVerification: command.NewRequestVerificationHandler(verifyStore, bus, verifyCfg),
		ConfirmVerification: command.NewConfirmVerificationHandler(verifyStore, bus, verifyCfg),

		GetStats:         query.NewGetStatsHandler(statsRepo, log),
		ListAchievements: query.NewListAchievementsHandler(catalog, stores.Achievements, statsRepo, log),
		GetContributions: query.NewGetContributionsHandler(stores.Activities, queryCfg),
		ListActivities:   query.NewListActivitiesHandler(stores.Activities),
		ListGoalProgress: query.NewListGoalProgressHandler(stores.Goals, stores.Activities, queryCfg),

		HealthChecker: buildHealthChecker(cfg, stores, redisCache),
		Logger:        log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. IN-PROCESS JOBS
	// The memory verification store lives in this process, so its sweep
	// cannot run in the worker.
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if memoryVerify != nil {
		sched = scheduler.New(scheduler.Config{Logger: log, Timezone: cfg.App.Location})
		if err := sched.Register(jobs.NewSweepVerificationsJob(memoryVerify, log),
			scheduler.Every(cfg.Scheduler.VerificationSweepInterval)); err != nil {
			return fmt.Errorf("failed to register sweep job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpCfg.Version = cfg.App.Version

	server := httpapi.NewServer(httpCfg, deps)
	errCh := server.StartAsync()

	log.Info("GritHabit API is running", logger.String("http_address", httpCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", logger.Err(err))
			return err
		}
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	log.Info("stopping HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		shutdownErr = err
	}

	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("failed to stop scheduler", logger.Err(err))
			shutdownErr = err
		}
	}

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the process logger from the observability config.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// connectRedis dials Redis with a short retry so a slow container start
// does not disable the cache.
func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	redisCfg := redis.Config{
		URL:          cfg.Redis.URL,
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}

	retrier := retry.ConnectRetrier(3, func(attempt int, err error, delay time.Duration) {
		log.Warn("redis not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Err(err),
			logger.Duration("delay", delay),
		)
	})

	var client *goredis.Client
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		client, err = redis.NewClient(ctx, redisCfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return redis.NewCache(client), nil
}

// newEventBus fans events out through Redis when it is available, so every
// API instance invalidates its caches; otherwise events stay in-process.
func newEventBus(ctx context.Context, cache *redis.Cache, log *logger.Logger) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log

	if cache == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}
	return messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(cache.Client()),
		LocalBusConfig: local,
		Logger:         log,
	})
}

func buildHealthChecker(cfg *config.Config, stores *persistence.Stores, cache *redis.Cache) httpapi.HealthChecker {
	checker := httpapi.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", httpapi.PingCheck(stores))
	if cache != nil {
		checker.AddCheck("redis", httpapi.PingCheck(cache))
	}
	return checker
}
