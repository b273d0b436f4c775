package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/cognitive"
	"github.com/jordanhubbard/cogload/internal/github"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// DefaultSwitchCostMinutes is the recovery cost recorded when a client omits one
const DefaultSwitchCostMinutes = 23

// StartFocusRequest opens a focus session
type StartFocusRequest struct {
	TaskType string `json:"taskType"`
	TaskID   string `json:"taskId,omitempty"`
}

// EndFocusRequest closes a focus session
type EndFocusRequest struct {
	Interrupted bool `json:"interrupted"`
}

// ContextSwitchRequest records a switch between task types
type ContextSwitchRequest struct {
	FromTaskType  string   `json:"fromTaskType"`
	ToTaskType    string   `json:"toTaskType"`
	EstimatedCost *float64 `json:"estimatedCost,omitempty"`
}

// handleFocusSessions handles GET (list recent) and POST (start) on /api/v1/focus/sessions
func (s *Server) handleFocusSessions(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	switch r.Method {
	case http.MethodGet:
		days, err := intParam(r, "days", 1, 90)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		now := s.Engine.Now()
		from := cognitive.StartOfDay(now, s.Engine.Location()).AddDate(0, 0, -(days - 1))
		sessions, err := s.DB.ListFocusSessions(r.Context(), userID, from, now.Add(time.Second))
		if err != nil {
			s.respondFailure(w, err, "Failed to list focus sessions")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "count": len(sessions)})

	case http.MethodPost:
		var req StartFocusRequest
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.TaskType) == "" {
			s.respondError(w, http.StatusBadRequest, "taskType is required")
			return
		}
		session := &models.FocusSession{
			UserID:    userID,
			TaskType:  req.TaskType,
			TaskID:    req.TaskID,
			StartedAt: s.Engine.Now(),
		}
		if err := s.DB.InsertFocusSession(r.Context(), session); err != nil {
			s.respondFailure(w, err, "Failed to start focus session")
			return
		}
		s.Cache.InvalidatePrefix(r.Context(), cache.UserPrefix(userID))
		s.respondJSON(w, http.StatusCreated, session)

	default:
		methodNotAllowed(w)
	}
}

// handleFocusSession handles POST /api/v1/focus/sessions/{id}/end
func (s *Server) handleFocusSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/end") {
		http.NotFound(w, r)
		return
	}
	id := s.extractID(r.URL.Path, "/api/v1/focus/sessions")
	if id == "" || id == "end" {
		s.respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	var req EndFocusRequest
	if r.ContentLength != 0 {
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	userID := auth.GetUserIDFromRequest(r)
	session, err := s.DB.CloseFocusSession(r.Context(), userID, id, s.Engine.Now(), req.Interrupted)
	if err != nil {
		s.respondFailure(w, err, "Failed to end focus session")
		return
	}
	s.Cache.InvalidatePrefix(r.Context(), cache.UserPrefix(userID))
	s.respondJSON(w, http.StatusOK, session)
}

// handleContextSwitches handles POST /api/v1/context-switches
func (s *Server) handleContextSwitches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req ContextSwitchRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FromTaskType == "" || req.ToTaskType == "" {
		s.respondError(w, http.StatusBadRequest, "fromTaskType and toTaskType are required")
		return
	}
	cost := float64(DefaultSwitchCostMinutes)
	if req.EstimatedCost != nil {
		if *req.EstimatedCost < 0 {
			s.respondError(w, http.StatusBadRequest, "estimatedCost must not be negative")
			return
		}
		cost = *req.EstimatedCost
	}

	userID := auth.GetUserIDFromRequest(r)
	sw := &models.ContextSwitch{
		UserID:        userID,
		FromTaskType:  req.FromTaskType,
		ToTaskType:    req.ToTaskType,
		SwitchedAt:    s.Engine.Now(),
		EstimatedCost: cost,
	}
	if err := s.DB.InsertContextSwitch(r.Context(), sw); err != nil {
		s.respondFailure(w, err, "Failed to record context switch")
		return
	}
	s.Cache.InvalidatePrefix(r.Context(), cache.UserPrefix(userID))
	s.respondJSON(w, http.StatusCreated, sw)
}

// handleSync handles POST /api/v1/github/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.Syncer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "GitHub sync is not configured")
		return
	}
	userID := auth.GetUserIDFromRequest(r)
	result, err := s.Syncer.Sync(r.Context(), userID)
	if err != nil {
		s.respondFailure(w, err, "Sync failed. Please try again.")
		return
	}
	if s.Analytics != nil {
		if _, err := s.Analytics.RollupToday(r.Context(), userID); err != nil {
			s.respondFailure(w, err, "Sync failed. Please try again.")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*github.Result
	}{true, result})
}

// handleDailyAnalytics handles GET /api/v1/analytics/daily?days=30&refresh=true
func (s *Server) handleDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	days, err := intParam(r, "days", 30, 365)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := auth.GetUserIDFromRequest(r)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if _, err := s.Analytics.RollupToday(r.Context(), userID); err != nil {
			s.respondFailure(w, err, "Failed to roll up analytics")
			return
		}
	}
	daily, err := s.Analytics.Daily(r.Context(), userID, days)
	if err != nil {
		s.respondFailure(w, err, "Failed to load analytics")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"days": daily, "count": len(daily)})
}
