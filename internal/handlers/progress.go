package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/models"
	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
)

// ProgressServiceInterface defines the interface for save-state business logic
type ProgressServiceInterface interface {
	Get(ctx context.Context, userID int64) (*models.Progress, error)
	Save(ctx context.Context, progress *models.Progress) (*models.Progress, error)
}

// ProgressHandler handles game save-state HTTP requests
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// SaveProgressRequest represents the request body for saving progress
type SaveProgressRequest struct {
	Level               int      `json:"level" validate:"required,gte=1"`
	Score               int      `json:"score" validate:"gte=0"`
	CompletedObjectives []string `json:"completed_objectives"`
}

// ProgressResponse represents a save state in the HTTP response
type ProgressResponse struct {
	Level               int      `json:"level"`
	Score               int      `json:"score"`
	CompletedObjectives []string `json:"completed_objectives"`
	UpdatedAt           string   `json:"updated_at"`
}

func progressToResponse(p *models.Progress) *ProgressResponse {
	objectives := p.CompletedObjectives
	if objectives == nil {
		objectives = []string{}
	}
	return &ProgressResponse{
		Level:               p.Level,
		Score:               p.Score,
		CompletedObjectives: objectives,
		UpdatedAt:           p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Get returns the authenticated player's save state
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	progress, err := h.service.Get(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, progressToResponse(progress))
}

// Save replaces the authenticated player's save state
func (h *ProgressHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	saved, err := h.service.Save(r.Context(), &models.Progress{
		UserID:              claims.UserID,
		Level:               req.Level,
		Score:               req.Score,
		CompletedObjectives: req.CompletedObjectives,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Invalid progress payload")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, progressToResponse(saved))
}
