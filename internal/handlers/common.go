// Package handlers serves the web interface: a JSON API over per-browser
// session controllers and a WebSocket feed of their state.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/session"
	"github.com/lehigh-university-libraries/bookledger/internal/storage"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// ControllerFactory creates the controller for a new browser session
type ControllerFactory func() *session.Controller

// Suggester fills in the missing fields of a draft
type Suggester interface {
	Suggest(ctx context.Context, draft models.Draft) (models.Draft, error)
}

type Handler struct {
	sessionStore *storage.SessionStore
	newSession   ControllerFactory
	suggester    Suggester
}

// New creates a handler. suggester may be nil, which disables draft suggestions.
func New(factory ControllerFactory, suggester Suggester) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		newSession:   factory,
		suggester:    suggester,
	}
}

// Close releases every session controller
func (h *Handler) Close() {
	h.sessionStore.CloseAll()
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// actionResponse is returned by every session action, successful or not
type actionResponse struct {
	Error string       `json:"error,omitempty"`
	State models.State `json:"state"`
}

// writeResult reports the outcome of a controller action with the session state.
func (h *Handler) writeResult(w http.ResponseWriter, c *session.Controller, err error) {
	if err == nil {
		h.writeJSON(w, actionResponse{State: c.Snapshot()})
		return
	}

	msg := err.Error()
	var userErr *session.UserError
	if errors.As(err, &userErr) {
		msg = userErr.Message
	}
	h.writeJSONStatus(w, statusFor(err), actionResponse{Error: msg, State: c.Snapshot()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrIncompleteDraft), errors.Is(err, session.ErrInvalidYear):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, session.ErrWrongNetwork):
		return http.StatusPreconditionFailed
	case errors.Is(err, wallet.ErrNoWallet), errors.Is(err, ledger.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.Entry, bool) {
	entry, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return entry, true
}
