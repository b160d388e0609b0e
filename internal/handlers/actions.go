package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	err := entry.Controller.Connect(r.Context())
	h.writeResult(w, entry.Controller, err)
}

func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	entry.Controller.Disconnect()
	h.writeResult(w, entry.Controller, nil)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	err := entry.Controller.FetchAll(r.Context())
	h.writeResult(w, entry.Controller, err)
}

func (h *Handler) HandleSetDraft(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	entry.Controller.SetDraft(draft)
	h.writeResult(w, entry.Controller, nil)
}

func (h *Handler) HandleClearDraft(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	entry.Controller.ClearDraft()
	h.writeResult(w, entry.Controller, nil)
}

// HandleSuggestDraft asks the configured LLM for the draft's missing fields.
// The form is updated but nothing is sent to the contract.
func (h *Handler) HandleSuggestDraft(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	if h.suggester == nil {
		h.writeError(w, "Suggestions are not configured", http.StatusNotImplemented)
		return
	}

	draft := entry.Controller.Snapshot().Draft
	if strings.TrimSpace(draft.Title) == "" {
		h.writeError(w, "A title is required for suggestions", http.StatusBadRequest)
		return
	}
	suggested, err := h.suggester.Suggest(r.Context(), draft)
	if err != nil {
		slog.Error("Draft suggestion failed", "title", draft.Title, "err", err)
		h.writeError(w, "Suggestion failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	entry.Controller.SetDraft(suggested)
	h.writeResult(w, entry.Controller, nil)
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	err := entry.Controller.SubmitNew(r.Context(), draft)
	h.writeResult(w, entry.Controller, err)
}

func (h *Handler) HandleToggleLoan(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	err = entry.Controller.ToggleLoanState(r.Context(), id)
	h.writeResult(w, entry.Controller, err)
}

func (h *Handler) HandleDismissError(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	entry.Controller.DismissError()
	h.writeResult(w, entry.Controller, nil)
}
