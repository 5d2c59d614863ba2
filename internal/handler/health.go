package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const appName = "identity-hub"

// Pinger reports whether the store is reachable. Both store
// implementations satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the public status routes.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleRoot answers GET / with the application name.
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"app": appName, "status": "ok"})
}

// HandlePing answers GET /api/public/ping. It reports 503 when the store
// does not answer within two seconds.
func (h *HealthHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("ping: store unreachable", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
