// Package main is the entry point of the GritHabit background worker.
//
// The worker runs periodic jobs:
//   - Reconciliation of UserStats for users active within the lookback window
//
// With Redis available, jobs take a lease before running so that only one
// worker replica executes each tick, and recomputed stats are announced on
// the shared event channel so API instances drop their cached snapshots.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grithabit/grithabit/config"
	"github.com/grithabit/grithabit/internal/application/command"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/infrastructure/messaging"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/redis"
	"github.com/grithabit/grithabit/internal/infrastructure/scheduler"
	"github.com/grithabit/grithabit/internal/infrastructure/scheduler/jobs"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

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
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("the worker needs a shared database; DB_DRIVER=memory is not supported")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	log.Info("starting GritHabit worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("db_driver", cfg.Database.Driver),
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler is disabled, nothing to do")
		return nil
	}

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
	// 4. REDIS (optional): cache invalidation, job leases, shared events
	// ─────────────────────────────────────────────────────────────────────────
	statsRepo := stores.Stats
	var (
		locker scheduler.Locker
		bus    eventBus
	)

	if !cfg.Redis.Disabled {
		cache, err := connectRedis(ctx, cfg)
		if err != nil {
			log.Warn("failed to connect to Redis, running without job leases", logger.Err(err))
		} else {
			defer cache.Close()
			statsRepo = redis.NewCachedStatsRepository(stores.Stats, cache, cfg.Redis.StatsCacheTTL, log)
			locker = redis.NewLocker(cache)
			bus, err = messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
				Client:         messaging.NewGoRedisClient(cache.Client()),
				LocalBusConfig: localBusConfig(log),
				Logger:         log,
			})
			if err != nil {
				return fmt.Errorf("failed to create event bus: %w", err)
			}
			log.Info("Redis connection established", logger.String("addr", cfg.Redis.Addr()))
		}
	}
	if bus == nil {
		bus = messaging.NewInMemoryEventBus(localBusConfig(log))
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	recompute := command.NewRecomputeStatsHandler(
		stores.Activities, stores.Goals, statsRepo, stores.Achievements,
		gamification.NewEvaluator(gamification.DefaultCatalog()), bus,
		command.RecordActivityHandlerConfig{Location: cfg.App.Location, Clock: clock, Logger: log},
	)

	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Timezone:          cfg.App.Location,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		Locker:            locker,
	})

	if err := sched.Register(
		jobs.NewRecomputeStatsJob(recompute, cfg.Scheduler.RecomputeStatsLookback, clock, log),
		scheduler.Every(cfg.Scheduler.RecomputeStatsInterval),
	); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.JobName(job.Name),
			logger.String("schedule", job.Schedule),
			logger.Time("next_run", job.NextRun),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("GritHabit worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("failed to stop scheduler", logger.Err(err))
	}

	m := sched.Metrics()
	log.Info("shutdown completed",
		logger.Int64("executions", m.TotalExecutions),
		logger.Int64("failures", m.TotalFailures),
		logger.Int64("skipped", m.TotalSkipped),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type eventBus interface {
	shared.EventPublisher
	Close() error
}

func localBusConfig(log *logger.Logger) messaging.InMemoryEventBusConfig {
	c := messaging.DefaultInMemoryEventBusConfig()
	c.Logger = log
	return c
}

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

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Cache, error) {
	client, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return redis.NewCache(client), nil
}
