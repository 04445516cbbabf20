package redis

import (
	"context"
	"errors"
	"time"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/pkg/circuitbreaker"
	"github.com/grithabit/grithabit/pkg/logger"
)

// DefaultStatsTTL bounds how stale a cached snapshot can get when an
// invalidation is lost.
const DefaultStatsTTL = 5 * time.Minute

// CachedStatsRepository is a read-through cache in front of a
// gamification.StatsRepository. Writes go to the store first and then
// drop the cached entry; cache failures never fail the operation.
// Reads and fills go through a circuit breaker so an unreachable Redis
// costs nothing per request; invalidations always reach Redis.
type CachedStatsRepository struct {
	next    gamification.StatsRepository
	cache   KeyValue
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewCachedStatsRepository wraps next.
func NewCachedStatsRepository(next gamification.StatsRepository, cache KeyValue, ttl time.Duration, log *logger.Logger) *CachedStatsRepository {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("stats_cache"))
	return &CachedStatsRepository{
		next:  next,
		cache: cache,
		ttl:   ttl,
		breaker: circuitbreaker.ForCache("redis-stats-cache",
			circuitbreaker.WithIsFailure(func(err error) bool { return !errors.Is(err, ErrCacheMiss) }),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		),
		log: log,
	}
}

// Get serves from cache, falling back to the store.
func (r *CachedStatsRepository) Get(ctx context.Context, userID shared.UserID) (*gamification.UserStats, error) {
	key := StatsKey(userID.String())

	var cached gamification.UserStats
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Get(ctx, key, &cached)
	})
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) && !circuitbreaker.IsRejected(err) {
		r.log.Warn("stats cache read failed", logger.UserID(userID.String()), logger.Err(err))
	}

	stats, err := r.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Set(ctx, key, stats, r.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		r.log.Warn("stats cache write failed", logger.UserID(userID.String()), logger.Err(err))
	}
	return stats, nil
}

// Create inserts through to the store.
func (r *CachedStatsRepository) Create(ctx context.Context, stats *gamification.UserStats) error {
	if err := r.next.Create(ctx, stats); err != nil {
		return err
	}
	r.drop(ctx, stats.UserID)
	return nil
}

// Save updates through to the store. A stale version also drops the
// cached entry since it is likely stale as well.
func (r *CachedStatsRepository) Save(ctx context.Context, stats *gamification.UserStats) error {
	err := r.next.Save(ctx, stats)
	r.drop(ctx, stats.UserID)
	return err
}

// Invalidate drops the cached snapshot of a user.
func (r *CachedStatsRepository) Invalidate(ctx context.Context, userID shared.UserID) error {
	return r.cache.Delete(ctx, StatsKey(userID.String()))
}

func (r *CachedStatsRepository) drop(ctx context.Context, userID shared.UserID) {
	if err := r.Invalidate(ctx, userID); err != nil {
		r.log.Warn("stats cache invalidation failed", logger.UserID(userID.String()), logger.Err(err))
	}
}

var _ gamification.StatsRepository = (*CachedStatsRepository)(nil)
