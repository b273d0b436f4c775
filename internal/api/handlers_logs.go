package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jordanhubbard/cogload/internal/logging"
)

// handleLogs returns recent log entries. With since/until the persistent log
// table is queried, otherwise the in-memory buffer.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.Logs == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Log manager not available")
		return
	}

	limit, err := intParam(r, "limit", 100, logging.MaxBufferSize)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	f := logging.Filter{
		Limit:  limit,
		Level:  q.Get("level"),
		Source: q.Get("source"),
		UserID: q.Get("user_id"),
		Agent:  q.Get("agent"),
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid '%s' parameter: %v", name, err))
			return
		}
		*dst = t
	}

	var logs []logging.LogEntry
	if f.Since.IsZero() && f.Until.IsZero() {
		logs = s.Logs.GetRecent(f)
	} else if logs, err = s.Logs.Query(f); err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to query logs: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
