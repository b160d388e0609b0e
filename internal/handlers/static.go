package handlers

import (
	"embed"
	"log/slog"
	"net/http"
)

//go:embed static/index.html
var staticFiles embed.FS

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write(page); err != nil {
		slog.Error("Unable to write page", "err", err)
	}
}
