package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/phishquest/phishquest-api/internal/database"
	"github.com/phishquest/phishquest-api/internal/models"
)

// ProgressRepository persists the game client's save state
type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{pool: db.Pool}
}

func scanProgressRow(scanner rowScanner) (*models.Progress, error) {
	var progress models.Progress

	err := scanner.Scan(
		&progress.UserID, &progress.Level, &progress.Score,
		pq.Array(&progress.CompletedObjectives), &progress.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &progress, nil
}

// Get returns the stored progress, or zeroed defaults when the player has
// never saved
func (r *ProgressRepository) Get(ctx context.Context, userID int64) (*models.Progress, error) {
	query := `
		SELECT user_id, level, score, completed_objectives, updated_at
		FROM progress WHERE user_id = $1
	`

	progress, err := scanProgressRow(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.Progress{
				UserID:              userID,
				Level:               1,
				CompletedObjectives: []string{},
				UpdatedAt:           time.Now(),
			}, nil
		}
		return nil, err
	}

	return progress, nil
}

// Upsert inserts or replaces a player's save state
func (r *ProgressRepository) Upsert(ctx context.Context, progress *models.Progress) (*models.Progress, error) {
	query := `
		INSERT INTO progress (user_id, level, score, completed_objectives, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET level = EXCLUDED.level, score = EXCLUDED.score,
			completed_objectives = EXCLUDED.completed_objectives, updated_at = NOW()
		RETURNING user_id, level, score, completed_objectives, updated_at
	`

	return scanProgressRow(r.pool.QueryRow(ctx, query,
		progress.UserID, progress.Level, progress.Score, pq.Array(progress.CompletedObjectives),
	))
}
