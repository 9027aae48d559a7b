package services

import (
	"context"
	"log/slog"

	"github.com/phishquest/phishquest-api/internal/models"
)

// ProgressRepository defines the interface for save-state persistence
type ProgressRepository interface {
	Get(ctx context.Context, userID int64) (*models.Progress, error)
	Upsert(ctx context.Context, progress *models.Progress) (*models.Progress, error)
}

// ProgressService manages player save state
type ProgressService struct {
	repo   ProgressRepository
	logger *slog.Logger
}

// NewProgressService creates a new ProgressService
func NewProgressService(repo ProgressRepository, logger *slog.Logger) *ProgressService {
	return &ProgressService{repo: repo, logger: logger}
}

// Get returns the player's save state, zeroed defaults for first-time players
func (s *ProgressService) Get(ctx context.Context, userID int64) (*models.Progress, error) {
	progress, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get progress", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return progress, nil
}

// Save validates and stores the player's save state
func (s *ProgressService) Save(ctx context.Context, progress *models.Progress) (*models.Progress, error) {
	if progress.Level < 1 || progress.Score < 0 {
		return nil, models.ErrBadRequest
	}
	if progress.CompletedObjectives == nil {
		progress.CompletedObjectives = []string{}
	}

	saved, err := s.repo.Upsert(ctx, progress)
	if err != nil {
		s.logger.Error("failed to save progress", slog.Int64("user_id", progress.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("progress saved",
		slog.Int64("user_id", saved.UserID),
		slog.Int("level", saved.Level),
		slog.Int("score", saved.Score))

	return saved, nil
}
