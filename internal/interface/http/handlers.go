package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/grithabit/grithabit/internal/application/command"
	"github.com/grithabit/grithabit/internal/application/query"
	"github.com/grithabit/grithabit/internal/domain/activity"
	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/goal"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"healthy": true,
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

type recordActivityRequest struct {
	Category            string           `json:"category"`
	Description         string           `json:"description"`
	Detail              *activity.Detail `json:"detail"`
	DurationMinutes     *int             `json:"duration_minutes"`
	GoalID              string           `json:"goal_id"`
	SubGoalID           string           `json:"sub_goal_id"`
	GoalProgressPercent *int             `json:"goal_progress_percentage"`
	Timestamp           *time.Time       `json:"timestamp"`
}

// achievementSummary is a newly unlocked achievement.
type achievementSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Rarity   string `json:"rarity"`
	XPReward int    `json:"xp_reward"`
}

type recordActivityResponse struct {
	Activity        query.ActivityDTO    `json:"activity"`
	XPGained        int                  `json:"xp_gained"`
	NewAchievements []achievementSummary `json:"new_achievements"`
	Stats           *query.StatsDTO      `json:"stats,omitempty"`
	LeveledUp       bool                 `json:"leveled_up"`
	CompletedGoalID string               `json:"completed_goal_id,omitempty"`
}

func summarize(list []gamification.Achievement) []achievementSummary {
	out := make([]achievementSummary, 0, len(list))
	for _, a := range list {
		out = append(out, achievementSummary{
			ID:       a.ID,
			Name:     a.Name,
			Icon:     a.Icon,
			Rarity:   string(a.Rarity),
			XPReward: a.XPReward,
		})
	}
	return out
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	cmd := command.RecordActivityCommand{
		UserID:              getUserID(r.Context()),
		Category:            req.Category,
		Description:         req.Description,
		DurationMinutes:     req.DurationMinutes,
		GoalID:              req.GoalID,
		SubGoalID:           req.SubGoalID,
		GoalProgressPercent: req.GoalProgressPercent,
		CorrelationID:       getRequestID(r.Context()),
	}
	if req.Detail != nil {
		cmd.Detail = *req.Detail
	}
	if req.Timestamp != nil {
		cmd.Timestamp = *req.Timestamp
	}

	result, err := s.deps.RecordActivity.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := recordActivityResponse{
		Activity:        query.NewActivityDTO(result.Activity),
		XPGained:        result.XPGained,
		NewAchievements: summarize(result.NewAchievements),
		LeveledUp:       result.LeveledUp,
	}
	if result.Stats != nil {
		dto := query.NewStatsDTO(result.Stats)
		resp.Stats = &dto
	}
	if result.CompletedGoal != nil {
		resp.CompletedGoalID = string(result.CompletedGoal.ID)
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	q := query.ListActivitiesQuery{
		UserID:   getUserID(r.Context()),
		Category: r.URL.Query().Get("category"),
	}
	var ok bool
	if q.Limit, ok = intParam(w, r, "limit"); !ok {
		return
	}
	if q.Offset, ok = intParam(w, r, "offset"); !ok {
		return
	}

	result, err := s.deps.ListActivities.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleGetContributions(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days")
	if !ok {
		return
	}

	result, err := s.deps.GetContributions.Handle(r.Context(), query.GetContributionsQuery{
		UserID: getUserID(r.Context()),
		Days:   days,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// GOALS
// ══════════════════════════════════════════════════════════════════════════════

type subGoalRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TargetCount int    `json:"target_count"`
}

type createGoalRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Period      string           `json:"period"`
	TargetCount int              `json:"target_count"`
	SubGoals    []subGoalRequest `json:"sub_goals"`
}

type goalResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category"`
	Period      string         `json:"period"`
	TargetCount int            `json:"target_count"`
	SubGoals    []goal.SubGoal `json:"sub_goals"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	cmd := command.CreateGoalCommand{
		UserID:        getUserID(r.Context()),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Period:        req.Period,
		TargetCount:   req.TargetCount,
		CorrelationID: getRequestID(r.Context()),
	}
	for _, sg := range req.SubGoals {
		cmd.SubGoals = append(cmd.SubGoals, command.SubGoalInput{
			Name:        sg.Name,
			Description: sg.Description,
			TargetCount: sg.TargetCount,
		})
	}

	g, err := s.deps.CreateGoal.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, goalResponse{
		ID:          string(g.ID),
		Title:       g.Title,
		Description: g.Description,
		Category:    g.Category.String(),
		Period:      string(g.Period),
		TargetCount: g.TargetCount,
		SubGoals:    g.SubGoals,
		CreatedAt:   g.CreatedAt,
	})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListGoalProgress.Handle(r.Context(), query.ListGoalProgressQuery{
		UserID: getUserID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS & ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetStats.Handle(r.Context(), query.GetStatsQuery{
		UserID: getUserID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

type recomputeResponse struct {
	Stats           query.StatsDTO       `json:"stats"`
	NewAchievements []achievementSummary `json:"new_achievements"`
}

func (s *Server) handleRecomputeStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.RecomputeStats.Handle(r.Context(), getUserID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recomputeResponse{
		Stats:           query.NewStatsDTO(result.Stats),
		NewAchievements: summarize(result.NewAchievements),
	})
}

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	earnedOnly, _ := strconv.ParseBool(r.URL.Query().Get("earned"))

	result, err := s.deps.ListAchievements.Handle(r.Context(), query.ListAchievementsQuery{
		UserID:     getUserID(r.Context()),
		EarnedOnly: earnedOnly,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleShareAchievement(w http.ResponseWriter, r *http.Request) {
	achievementID := mux.Vars(r)["id"]

	err := s.deps.MarkAchievementShared.Handle(r.Context(), command.MarkAchievementSharedCommand{
		UserID:        getUserID(r.Context()),
		AchievementID: achievementID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"achievement_id": achievementID,
		"shared":         true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

type requestVerificationRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type requestVerificationResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	PIN       string    `json:"pin,omitempty"`
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	var req requestVerificationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.RequestVerification.Handle(r.Context(), command.RequestVerificationCommand{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, requestVerificationResponse{
		Email:     result.Email,
		ExpiresAt: result.ExpiresAt,
		PIN:       result.PIN,
	})
}

type confirmVerificationRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

func (s *Server) handleConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req confirmVerificationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.ConfirmVerification.Handle(r.Context(), command.ConfirmVerificationCommand{
		Email: req.Email,
		PIN:   req.PIN,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"email":     result.Email,
		"full_name": result.FullName,
		"verified":  true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

// intParam parses an optional integer query parameter. A missing value
// yields 0; a malformed one writes a 400 and returns ok=false.
func intParam(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", key+" must be an integer")
		return 0, false
	}
	return n, true
}
