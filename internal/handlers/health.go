package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles liveness probes
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Check reports service and database health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, &HealthResponse{
			Status:   "degraded",
			Database: "unreachable",
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &HealthResponse{
		Status:   "ok",
		Database: "ok",
	})
}
