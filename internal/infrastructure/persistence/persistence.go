// Package persistence selects and opens the configured storage driver.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/config"
	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/postgres"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/sqlite"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/retry"
)

// Stores groups the repositories of one storage driver.
type Stores struct {
	Driver       string
	Activities   activity.Repository
	Goals        goal.Repository
	Stats        gamification.StatsRepository
	Achievements gamification.AchievementRepository

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks that the underlying database is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the underlying database handle.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the driver named in cfg. Postgres connections are
// retried with backoff and migrated when AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("persistence"), logger.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		return openSQLite(cfg, log)
	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return &Stores{
			Driver:       cfg.Driver,
			Activities:   memory.NewActivityRepository(),
			Goals:        memory.NewGoalRepository(),
			Stats:        memory.NewStatsRepository(),
			Achievements: memory.NewAchievementRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("persistence: unknown driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	pgCfg := postgres.DefaultConfig(cfg.URL)
	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if cfg.QueryTimeout > 0 {
		pgCfg.StatementTimeout = cfg.QueryTimeout
	}

	retrier := retry.ConnectRetrier(cfg.ConnectRetries, func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Err(err),
			logger.Duration("delay", delay),
		)
	})

	var conn *postgres.Connection
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnection(ctx, pgCfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if cfg.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))
	}

	log.Info("database connection established")
	return &Stores{
		Driver:       cfg.Driver,
		Activities:   postgres.NewActivityRepository(conn),
		Goals:        postgres.NewGoalRepository(conn),
		Stats:        postgres.NewStatsRepository(conn),
		Achievements: postgres.NewAchievementRepository(conn),
		ping:         conn.Ping,
		close:        conn.Close,
	}, nil
}

func openSQLite(cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.Info("sqlite database opened", logger.String("path", cfg.SQLitePath))
	return &Stores{
		Driver:       cfg.Driver,
		Activities:   sqlite.NewActivityRepository(db),
		Goals:        sqlite.NewGoalRepository(db),
		Stats:        sqlite.NewStatsRepository(db),
		Achievements: sqlite.NewAchievementRepository(db),
		ping:         db.PingContext,
		close:        func() { _ = db.Close() },
	}, nil
}
