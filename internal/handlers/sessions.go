package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/storage"
)

type sessionSummary struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	State     models.State `json:"state"`
}

func summarize(entry *storage.Entry) sessionSummary {
	return sessionSummary{
		ID:        entry.ID,
		CreatedAt: entry.CreatedAt,
		State:     entry.Controller.Snapshot(),
	}
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	sessionList := make([]sessionSummary, 0, len(sessions))
	for _, entry := range sessions {
		sessionList = append(sessionList, summarize(entry))
	}
	sort.Slice(sessionList, func(i, j int) bool {
		return sessionList[i].CreatedAt.Before(sessionList[j].CreatedAt)
	})
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	entry := &storage.Entry{
		ID:         uuid.NewString(),
		Controller: h.newSession(),
		CreatedAt:  time.Now(),
	}
	h.sessionStore.Set(entry.ID, entry)

	h.writeJSONStatus(w, http.StatusCreated, summarize(entry))
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	h.writeJSON(w, summarize(entry))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(chi.URLParam(r, "sessionID")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCloseSession is the pagehide beacon target; browsers can only POST it.
func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.sessionStore.Delete(sessionID) {
		slog.Debug("Session closed by page", "session_id", sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSweeper closes sessions without an event stream once they have been
// idle for longer than idle. It stops when ctx is done.
func (h *Handler) StartSweeper(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := h.sessionStore.Sweep(idle); n > 0 {
					slog.Info("Closed idle sessions", "count", n)
				}
			}
		}
	}()
}
