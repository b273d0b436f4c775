package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/briefing"
	"github.com/jordanhubbard/cogload/internal/orchestrator"
)

// RecommendRequest starts an orchestration run
type RecommendRequest struct {
	Trigger        orchestrator.Trigger         `json:"trigger"`
	NewTaskContext *orchestrator.NewTaskContext `json:"newTaskContext,omitempty"`
}

// DismissRequest toggles a recommendation's dismissed flag
type DismissRequest struct {
	ID        string `json:"id"`
	Dismissed *bool  `json:"dismissed"`
}

// BriefingRequest asks for a context-reload briefing
type BriefingRequest struct {
	TaskID   string `json:"taskId"`
	TaskType string `json:"taskType"`
}

// handleRecommend handles POST (run the agents) and PATCH (dismiss) on
// /api/v1/agents/recommend
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.runRecommend(w, r)
	case http.MethodPatch:
		s.dismissRecommendation(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) runRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Trigger == "" {
		req.Trigger = orchestrator.TriggerManual
	}

	userID := auth.GetUserIDFromRequest(r)
	result, err := s.Orchestrator.Run(r.Context(), userID, req.Trigger, req.NewTaskContext)
	if err != nil {
		s.respondFailure(w, err, "Agent orchestration failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"score":           result.Score,
		"recommendations": result.Recommendations,
	})
}

func (s *Server) dismissRecommendation(w http.ResponseWriter, r *http.Request) {
	var req DismissRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		s.respondError(w, http.StatusBadRequest, "id is required")
		return
	}
	dismissed := true
	if req.Dismissed != nil {
		dismissed = *req.Dismissed
	}

	userID := auth.GetUserIDFromRequest(r)
	if err := s.DB.SetRecommendationDismissed(r.Context(), userID, req.ID, dismissed); err != nil {
		s.respondFailure(w, err, "Failed to update recommendation")
		return
	}
	log.Printf("[API] Recommendation %s dismissed=%t by %s", req.ID, dismissed, userID)
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRecommendations handles GET /api/v1/recommendations?include_dismissed=&limit=
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, err := intParam(r, "limit", 20, 200)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeDismissed, _ := strconv.ParseBool(r.URL.Query().Get("include_dismissed"))

	recs, err := s.DB.ListRecommendations(r.Context(), auth.GetUserIDFromRequest(r), includeDismissed, limit)
	if err != nil {
		s.respondFailure(w, err, "Failed to list recommendations")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// handleGenerateBriefing handles POST /api/v1/ai/briefing
func (s *Server) handleGenerateBriefing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req BriefingRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" || req.TaskType == "" {
		s.respondError(w, http.StatusBadRequest, "taskId and taskType are required")
		return
	}
	taskType, err := briefing.ParseTaskType(req.TaskType)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.Briefings.Generate(r.Context(), auth.GetUserIDFromRequest(r), req.TaskID, taskType)
	if err != nil {
		s.respondFailure(w, err, "Failed to generate briefing")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "briefing": b})
}

// handleBriefings handles GET /api/v1/briefings?limit=
func (s *Server) handleBriefings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, err := intParam(r, "limit", 10, 100)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.DB.ListBriefings(r.Context(), auth.GetUserIDFromRequest(r), limit)
	if err != nil {
		s.respondFailure(w, err, "Failed to list briefings")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"briefings": list, "count": len(list)})
}
