package query

import (
	"context"
	"fmt"
	"time"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERY
// Returns the whole catalog in definition order, annotated with what the
// user has earned and how close they are to the rest.
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsQuery selects whose achievements to show.
type ListAchievementsQuery struct {
	UserID string

	// EarnedOnly drops catalog entries the user does not hold.
	EarnedOnly bool
}

// CriteriaDTO is the serialized eligibility rule.
type CriteriaDTO struct {
	Type     string `json:"type"`
	Target   int    `json:"target"`
	Category string `json:"category,omitempty"`
}

// AchievementDTO is one catalog entry from the user's point of view.
type AchievementDTO struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Category    string      `json:"category"`
	Rarity      string      `json:"rarity"`
	XPReward    int         `json:"xp_reward"`
	Criteria    CriteriaDTO `json:"criteria"`

	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
	Shared   bool       `json:"shared"`

	// Progress is capped at Target; both are 0 for unsupported criteria.
	Progress int `json:"progress"`
	Target   int `json:"target"`
}

// ListAchievementsResult is the catalog view.
type ListAchievementsResult struct {
	Achievements []AchievementDTO `json:"achievements"`
	EarnedCount  int              `json:"earned_count"`
	TotalCount   int              `json:"total_count"`
}

// ListAchievementsHandler handles ListAchievementsQuery.
type ListAchievementsHandler struct {
	catalog   *gamification.Catalog
	achRepo   gamification.AchievementRepository
	statsRepo gamification.StatsRepository
	log       *logger.Logger
}

// NewListAchievementsHandler creates a new handler.
func NewListAchievementsHandler(
	catalog *gamification.Catalog,
	achRepo gamification.AchievementRepository,
	statsRepo gamification.StatsRepository,
	log *logger.Logger,
) *ListAchievementsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ListAchievementsHandler{
		catalog:   catalog,
		achRepo:   achRepo,
		statsRepo: statsRepo,
		log:       log,
	}
}

// Handle builds the annotated catalog.
func (h *ListAchievementsHandler) Handle(ctx context.Context, q ListAchievementsQuery) (*ListAchievementsResult, error) {
	userID, err := parseUserID("ListAchievements", q.UserID)
	if err != nil {
		return nil, err
	}

	earned, err := h.achRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	byID := make(map[string]gamification.UserAchievement, len(earned))
	for _, ua := range earned {
		byID[ua.AchievementID] = ua
	}

	stats, err := loadStats(ctx, h.statsRepo, userID)
	if err != nil {
		// Progress bars are cosmetic; the earned flags are still correct.
		logger.FromContextOr(ctx, h.log).Warn("stats unavailable for achievement progress",
			logger.UserID(userID.String()), logger.Err(err))
		stats = nil
	}

	all := h.catalog.All()
	result := &ListAchievementsResult{
		Achievements: make([]AchievementDTO, 0, len(all)),
		TotalCount:   len(all),
	}
	for _, a := range all {
		ua, ok := byID[a.ID]
		if ok {
			result.EarnedCount++
		} else if q.EarnedOnly {
			continue
		}
		result.Achievements = append(result.Achievements, newAchievementDTO(a, ua, ok, stats))
	}
	return result, nil
}

func newAchievementDTO(a gamification.Achievement, ua gamification.UserAchievement, earned bool, stats *gamification.UserStats) AchievementDTO {
	dto := AchievementDTO{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Icon:        a.Icon,
		Category:    string(a.Tag),
		Rarity:      string(a.Rarity),
		XPReward:    a.XPReward,
		Earned:      earned,
	}
	if a.Criteria != nil {
		dto.Criteria = CriteriaDTO{
			Type:     string(a.Criteria.Kind()),
			Target:   a.Criteria.Threshold(),
			Category: string(a.CriteriaCategory()),
		}
	}
	if earned {
		t := ua.EarnedAt
		dto.EarnedAt = &t
		dto.Shared = ua.Shared
	}

	dto.Progress, dto.Target = gamification.Progress(a, stats)
	if earned && dto.Target > 0 {
		dto.Progress = dto.Target
	}
	return dto
}
