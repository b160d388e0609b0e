package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page is served by this process
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents streams the session state to the browser over a WebSocket.
// The current state is sent first, then one message per change.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	entry, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "session_id", sessionID, "err", err)
		return
	}
	defer conn.Close()

	states := make(chan models.State, 8)
	// slow clients lose the oldest queued state, never the latest
	push := func(s models.State) {
		for {
			select {
			case states <- s:
				return
			default:
			}
			select {
			case <-states:
				slog.Debug("Dropping state update for slow client", "session_id", sessionID)
			default:
			}
		}
	}
	release := h.sessionStore.Attach(sessionID)
	defer release()

	push(entry.Controller.Snapshot())
	cancel := entry.Controller.Watch(push)
	defer cancel()

	done := make(chan struct{})
	go h.writerLoop(conn, states, done)

	// Reader loop: only detects the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	slog.Debug("WebSocket closed", "session_id", sessionID)
}

func (h *Handler) writerLoop(conn *websocket.Conn, states <-chan models.State, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(s); err != nil {
				slog.Warn("Failed to write state to websocket", "err", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-done:
			return
		}
	}
}
