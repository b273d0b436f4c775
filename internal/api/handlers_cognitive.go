package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jordanhubbard/cogload/internal/archive"
	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/pkg/models"
)

// ScoreResponse is the payload of the score endpoint and its cache entry
type ScoreResponse struct {
	Current *models.CognitiveScore `json:"current"`
	History []models.ScorePoint    `json:"history"`
}

// handleScore handles GET /api/v1/cognitive/score?refresh=true&days=7.
// Without refresh the latest stored snapshot is served (computing one when
// the user has none); refresh always appends a fresh snapshot.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserIDFromRequest(r)
	days, err := intParam(r, "days", 7, 365)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	ctx := r.Context()
	key := cache.ScoreKey(userID, days)

	if !refresh {
		var cached ScoreResponse
		if err := s.Cache.GetJSON(ctx, key, &cached); err == nil {
			s.respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	var current *models.CognitiveScore
	if !refresh {
		latest, err := s.Engine.Latest(ctx, userID)
		if err != nil {
			s.respondFailure(w, err, "Failed to calculate cognitive load")
			return
		}
		if latest != nil {
			current = latest.ToScore()
		}
	}
	if current == nil {
		current, err = s.Engine.Calculate(ctx, userID)
		if err != nil {
			s.respondFailure(w, err, "Failed to calculate cognitive load")
			return
		}
		// A new snapshot makes every cached window for this user stale
		s.Cache.InvalidatePrefix(ctx, cache.UserPrefix(userID))
	}

	history, err := s.Engine.History(ctx, userID, days)
	if err != nil {
		s.respondFailure(w, err, "Failed to calculate cognitive load")
		return
	}

	payload := ScoreResponse{Current: current, History: history}
	if err := s.Cache.SetJSON(ctx, key, payload, s.config.ScoreTTL); err != nil {
		log.Printf("[API] Failed to cache score for %s: %v", userID, err)
	}
	s.respondJSON(w, http.StatusOK, payload)
}

// handleHistory handles GET /api/v1/cognitive/history?days=7
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	days, err := intParam(r, "days", 7, 365)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := s.Engine.History(r.Context(), auth.GetUserIDFromRequest(r), days)
	if err != nil {
		s.respondFailure(w, err, "Failed to load score history")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}

// handleExport streams snapshot history as zstd-compressed JSON lines
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserIDFromRequest(r)
	days, err := intParam(r, "days", 30, 3650)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	since := s.Engine.Now().Add(-time.Duration(days) * 24 * time.Hour)
	snapshots, err := s.DB.ListSnapshotsSince(r.Context(), userID, since)
	if err != nil {
		s.respondFailure(w, err, "Failed to export history")
		return
	}

	w.Header().Set("Content-Type", archive.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileName(userID, days)+`"`)
	w.Header().Set("X-Snapshot-Count", strconv.Itoa(len(snapshots)))
	w.WriteHeader(http.StatusOK)
	if err := archive.WriteSnapshots(w, snapshots); err != nil {
		log.Printf("[API] Export for %s aborted: %v", userID, err)
	}
}
