package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the router for the web interface
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HandleStatic)
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.HandleListSessions)
		r.Post("/", h.HandleCreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/close", h.HandleCloseSession)
			r.Get("/events", h.HandleEvents)

			r.Post("/connect", h.HandleConnect)
			r.Post("/disconnect", h.HandleDisconnect)
			r.Post("/refresh", h.HandleRefresh)
			r.Delete("/error", h.HandleDismissError)

			r.Put("/draft", h.HandleSetDraft)
			r.Delete("/draft", h.HandleClearDraft)
			r.Post("/draft/suggest", h.HandleSuggestDraft)

			r.Post("/books", h.HandleAddBook)
			r.Post("/books/{bookID}/toggle", h.HandleToggleLoan)
		})
	})

	return r
}
