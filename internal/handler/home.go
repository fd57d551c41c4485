package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/skillfolio/internal/model"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HomeHandler struct {
	db      Pinger
	appName string
}

func NewHomeHandler(db Pinger, appName string) *HomeHandler {
	return &HomeHandler{db: db, appName: appName}
}

func (h *HomeHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": h.appName})
}

func (h *HomeHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	handleError(w, r, model.NotFound("route", r.Method+" "+r.URL.Path))
}
