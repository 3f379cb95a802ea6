package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	deps   map[string]Pinger
	now    func() time.Time
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler probing deps by name.
func NewHealthHandler(deps map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, now: time.Now, logger: logger}
}

// HealthCheck reports each dependency and answers 503 when any is down.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "handler: health dependency down",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":    state,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
