// Package jobs contains the scheduled jobs of the GritHabit worker.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/application/command"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STATS JOB
// ══════════════════════════════════════════════════════════════════════════════

// StatsRecomputer rebuilds the stats of users active since a point in time.
type StatsRecomputer interface {
	RecomputeActiveSince(ctx context.Context, since time.Time) (*command.RecomputeAllResult, error)
}

// RecomputeStatsJob reconciles the snapshots of recently active users
// with their full activity history.
type RecomputeStatsJob struct {
	recomputer StatsRecomputer
	lookback   time.Duration
	clock      timeutil.Clock
	log        *logger.Logger
}

// DefaultRecomputeLookback covers yesterday's activities in any timezone.
const DefaultRecomputeLookback = 48 * time.Hour

// NewRecomputeStatsJob creates the job.
func NewRecomputeStatsJob(recomputer StatsRecomputer, lookback time.Duration, clock timeutil.Clock, log *logger.Logger) *RecomputeStatsJob {
	if lookback <= 0 {
		lookback = DefaultRecomputeLookback
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecomputeStatsJob{
		recomputer: recomputer,
		lookback:   lookback,
		clock:      clock,
		log:        log.With(logger.JobName("recompute_stats")),
	}
}

func (j *RecomputeStatsJob) Name() string {
	return "recompute_stats"
}

func (j *RecomputeStatsJob) Description() string {
	return "Rebuilds stats of recently active users from their activity history"
}

// Run executes the job. Per-user failures are counted, not returned.
func (j *RecomputeStatsJob) Run(ctx context.Context) error {
	since := j.clock.Now().Add(-j.lookback)

	summary, err := j.recomputer.RecomputeActiveSince(ctx, since)
	if err != nil {
		return fmt.Errorf("recompute stats since %s: %w", since.Format(time.RFC3339), err)
	}

	j.log.Info("stats recomputed",
		logger.Int("users", summary.Users),
		logger.Int("failed", summary.Failed),
		logger.Int("achievements_awarded", summary.Awarded),
		logger.Latency(summary.Duration),
	)
	return nil
}
