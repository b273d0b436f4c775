package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/events"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamBuffer     = 64
)

// handleStream upgrades GET /api/v1/stream to a websocket and relays the
// caller's events (new snapshots, recommendations, briefings, syncs).
// Slow clients drop events rather than block the bus.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.Bus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Event bus not available")
		return
	}
	userID := auth.GetUserIDFromRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] Websocket upgrade failed for %s: %v", userID, err)
		return
	}
	defer conn.Close()

	ch := make(chan events.Event, streamBuffer)
	unsubscribe, err := s.Bus.Subscribe(userID, func(e events.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	if err != nil {
		log.Printf("[API] Failed to subscribe %s to events: %v", userID, err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event bus unavailable"))
		return
	}
	defer unsubscribe()

	// The read loop only services control frames and notices disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(events.NewEvent("connected", userID, nil)); err != nil {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
