package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

var testNow = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type fixture struct {
	activities   *memory.ActivityRepository
	goals        *memory.GoalRepository
	stats        *memory.StatsRepository
	achievements *memory.AchievementRepository
	publisher    *recordingPublisher
	evaluator    *gamification.Evaluator
	config       RecordActivityHandlerConfig
}

func newFixture() *fixture {
	return &fixture{
		activities:   memory.NewActivityRepository(),
		goals:        memory.NewGoalRepository(),
		stats:        memory.NewStatsRepository(),
		achievements: memory.NewAchievementRepository(),
		publisher:    &recordingPublisher{},
		evaluator:    gamification.NewEvaluator(gamification.DefaultCatalog()),
		config: RecordActivityHandlerConfig{
			Location: time.UTC,
			Clock:    timeutil.FixedClock{T: testNow},
			NewID:    seqIDs("act"),
		},
	}
}

func (f *fixture) recordHandler(achievements gamification.AchievementRepository) *RecordActivityHandler {
	if achievements == nil {
		achievements = f.achievements
	}
	return NewRecordActivityHandler(f.activities, f.goals, f.stats, achievements, f.evaluator, f.publisher, f.config)
}

func (f *fixture) recomputeHandler() *RecomputeStatsHandler {
	return NewRecomputeStatsHandler(f.activities, f.goals, f.stats, f.achievements, f.evaluator, f.publisher, f.config)
}

func (f *fixture) createGoalHandler() *CreateGoalHandler {
	return NewCreateGoalHandler(f.goals, f.publisher, timeutil.FixedClock{T: testNow}, nil).WithIDGenerator(seqIDs("goal"))
}

func intPtr(v int) *int { return &v }

func achievementIDs(list []gamification.Achievement) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

// lostRaceAchievements reports every award as already recorded.
type lostRaceAchievements struct {
	*memory.AchievementRepository
}

func (lostRaceAchievements) Award(context.Context, gamification.UserAchievement) (bool, error) {
	return false, nil
}

// racingStats lets another writer update the row right before the first Save.
type racingStats struct {
	*memory.StatsRepository
	raced bool
}

func (r *racingStats) Save(ctx context.Context, stats *gamification.UserStats) error {
	if !r.raced {
		r.raced = true
		other, err := r.StatsRepository.Get(ctx, stats.UserID)
		if err != nil {
			return err
		}
		other.TotalActivities++
		other.AddXP(10)
		if err := r.StatsRepository.Save(ctx, other); err != nil {
			return err
		}
	}
	return r.StatsRepository.Save(ctx, stats)
}

// failingNthSave fails the n-th Save call and passes the others through.
type failingNthSave struct {
	*memory.StatsRepository
	n     int
	calls int
}

func (r *failingNthSave) Save(ctx context.Context, stats *gamification.UserStats) error {
	r.calls++
	if r.calls == r.n {
		return fmt.Errorf("connection reset")
	}
	return r.StatsRepository.Save(ctx, stats)
}
