// Package memory provides process-local implementations of the domain
// repositories. They back the "memory" storage driver for local runs and
// the application-layer tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
	"github.com/grithabit/grithabit/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements activity.Repository.
type ActivityRepository struct {
	mu     sync.RWMutex
	byUser map[shared.UserID][]*activity.Activity

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewActivityRepository creates an empty repository.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{byUser: make(map[shared.UserID][]*activity.Activity)}
}

func (r *ActivityRepository) Save(_ context.Context, a *activity.Activity) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byUser[a.UserID] {
		if existing.ID == a.ID {
			return fmt.Errorf("activity %s: %w", a.ID, shared.ErrAlreadyExists)
		}
	}
	cp := *a
	r.byUser[a.UserID] = append(r.byUser[a.UserID], &cp)
	return nil
}

func (r *ActivityRepository) GetByID(_ context.Context, userID shared.UserID, id activity.ID) (*activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byUser[userID] {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrActivityNotFound
}

func (r *ActivityRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*activity.Activity, error) {
	return r.ListByUserSince(ctx, userID, time.Time{})
}

func (r *ActivityRepository) ListByUserSince(_ context.Context, userID shared.UserID, since time.Time) ([]*activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*activity.Activity, 0, len(r.byUser[userID]))
	for _, a := range r.byUser[userID] {
		if a.Timestamp.Before(since) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (r *ActivityRepository) ListActiveUsersSince(_ context.Context, since time.Time) ([]shared.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []shared.UserID
	for userID, list := range r.byUser {
		for _, a := range list {
			if a.CreatedAt.After(since) {
				users = append(users, userID)
				break
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GOALS
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository.
type GoalRepository struct {
	mu    sync.RWMutex
	goals map[goal.ID]*goal.Goal
}

// NewGoalRepository creates an empty repository.
func NewGoalRepository() *GoalRepository {
	return &GoalRepository{goals: make(map[goal.ID]*goal.Goal)}
}

func cloneGoal(g *goal.Goal) *goal.Goal {
	cp := *g
	cp.SubGoals = append([]goal.SubGoal(nil), g.SubGoals...)
	if g.CompletedAt != nil {
		at := *g.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (r *GoalRepository) Save(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.goals[g.ID]; ok {
		return fmt.Errorf("goal %s: %w", g.ID, shared.ErrAlreadyExists)
	}
	r.goals[g.ID] = cloneGoal(g)
	return nil
}

func (r *GoalRepository) GetByID(_ context.Context, userID shared.UserID, id goal.ID) (*goal.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, shared.ErrGoalNotFound
	}
	return cloneGoal(g), nil
}

func (r *GoalRepository) ListByUser(_ context.Context, userID shared.UserID) ([]*goal.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			out = append(out, cloneGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *GoalRepository) MarkCompleted(_ context.Context, userID shared.UserID, id goal.ID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return false, shared.ErrGoalNotFound
	}
	return g.MarkCompleted(at), nil
}

func (r *GoalRepository) CountCompleted(_ context.Context, userID shared.UserID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, g := range r.goals {
		if g.UserID == userID && g.IsCompleted() {
			n++
		}
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements gamification.StatsRepository with
// optimistic versioning.
type StatsRepository struct {
	mu    sync.RWMutex
	stats map[shared.UserID]*gamification.UserStats

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewStatsRepository creates an empty repository.
func NewStatsRepository() *StatsRepository {
	return &StatsRepository{stats: make(map[shared.UserID]*gamification.UserStats)}
}

func (r *StatsRepository) Get(_ context.Context, userID shared.UserID) (*gamification.UserStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[userID]
	if !ok {
		return nil, shared.ErrStatsNotFound
	}
	return s.Clone(), nil
}

func (r *StatsRepository) Create(_ context.Context, stats *gamification.UserStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stats[stats.UserID]; ok {
		return fmt.Errorf("stats for %s: %w", stats.UserID, shared.ErrAlreadyExists)
	}
	stats.Version = 0
	r.stats[stats.UserID] = stats.Clone()
	return nil
}

func (r *StatsRepository) Save(_ context.Context, stats *gamification.UserStats) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.stats[stats.UserID]
	if !ok {
		return shared.ErrStatsNotFound
	}
	if current.Version != stats.Version {
		return shared.ErrStatsVersionStale
	}
	stats.Version++
	r.stats[stats.UserID] = stats.Clone()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements gamification.AchievementRepository.
type AchievementRepository struct {
	mu     sync.RWMutex
	byUser map[shared.UserID]map[string]*gamification.UserAchievement
}

// NewAchievementRepository creates an empty repository.
func NewAchievementRepository() *AchievementRepository {
	return &AchievementRepository{byUser: make(map[shared.UserID]map[string]*gamification.UserAchievement)}
}

func (r *AchievementRepository) ListByUser(_ context.Context, userID shared.UserID) ([]gamification.UserAchievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]gamification.UserAchievement, 0, len(r.byUser[userID]))
	for _, ua := range r.byUser[userID] {
		out = append(out, *ua)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].AchievementID < out[j].AchievementID
		}
		return out[i].EarnedAt.After(out[j].EarnedAt)
	})
	return out, nil
}

func (r *AchievementRepository) Award(_ context.Context, ua gamification.UserAchievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	earned, ok := r.byUser[ua.UserID]
	if !ok {
		earned = make(map[string]*gamification.UserAchievement)
		r.byUser[ua.UserID] = earned
	}
	if _, exists := earned[ua.AchievementID]; exists {
		return false, nil
	}
	cp := ua
	earned[ua.AchievementID] = &cp
	return true, nil
}

func (r *AchievementRepository) MarkShared(_ context.Context, userID shared.UserID, achievementID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ua, ok := r.byUser[userID][achievementID]
	if !ok {
		return shared.ErrAchievementNotEarned
	}
	ua.Shared = true
	return nil
}

// Compile-time interface checks.
var (
	_ activity.Repository                = (*ActivityRepository)(nil)
	_ goal.Repository                    = (*GoalRepository)(nil)
	_ gamification.StatsRepository       = (*StatsRepository)(nil)
	_ gamification.AchievementRepository = (*AchievementRepository)(nil)
)
