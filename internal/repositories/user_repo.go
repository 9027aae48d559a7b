package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/phishquest/phishquest-api/internal/database"
	"github.com/phishquest/phishquest-api/internal/models"
)

const userColumns = `id, username, email, password_hash, email_verified, verification_token, token_expiry,
		two_fa_secret, two_fa_enabled, two_fa_backup_codes, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var verificationToken, twoFASecret *string
	var tokenExpiry *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.EmailVerified, &verificationToken, &tokenExpiry,
		&twoFASecret, &user.TwoFAEnabled, pq.Array(&user.TwoFABackupCodes),
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.VerificationToken = verificationToken
	user.TokenExpiry = tokenExpiry
	user.TwoFASecret = twoFASecret

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

// GetByVerificationToken looks up a user holding an unconsumed verification token
func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE verification_token = $1`, userColumns)
	return scanUserRow(r.pool.QueryRow(ctx, query, token))
}

// Create inserts a new user. Duplicate username or email surfaces as
// models.ErrConflict via the unique constraints.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO users (username, email, password_hash, email_verified, verification_token, token_expiry,
			two_fa_secret, two_fa_enabled, two_fa_backup_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s
	`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash,
		user.EmailVerified, user.VerificationToken, user.TokenExpiry,
		user.TwoFASecret, user.TwoFAEnabled, pq.Array(user.TwoFABackupCodes),
		user.CreatedAt, user.UpdatedAt,
	))
}

// MarkEmailVerified flips the verified flag and clears the token together with
// its expiry in the same statement
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_token = NULL, token_expiry = NULL, updated_at = NOW()
		WHERE id = $1 AND email_verified = FALSE
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// EnableTwoFA persists a confirmed enrollment: secret, backup codes and the
// enabled flag land in one statement
func (r *UserRepository) EnableTwoFA(ctx context.Context, id int64, secret string, backupCodes []string) error {
	query := `
		UPDATE users
		SET two_fa_secret = $2, two_fa_enabled = TRUE, two_fa_backup_codes = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, secret, pq.Array(backupCodes))
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ConsumeBackupCode atomically removes a backup code if it is still present.
// The check and the removal happen in one statement, so two concurrent
// requests submitting the same code can never both succeed: the second UPDATE
// re-evaluates the predicate after the first commits and matches no row.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, id int64, code string) (bool, error) {
	query := `
		UPDATE users
		SET two_fa_backup_codes = array_remove(two_fa_backup_codes, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(two_fa_backup_codes)
	`

	result, err := r.pool.Exec(ctx, query, id, code)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() == 1, nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ResetPasswordConsumingBackupCode replaces the password hash and consumes the
// backup code in a single statement, with the same atomicity guarantee as
// ConsumeBackupCode. Used by account recovery when the second factor was a
// backup code rather than a TOTP code.
func (r *UserRepository) ResetPasswordConsumingBackupCode(ctx context.Context, id int64, passwordHash, code string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $2, two_fa_backup_codes = array_remove(two_fa_backup_codes, $3), updated_at = NOW()
		WHERE id = $1 AND $3 = ANY(two_fa_backup_codes)
	`

	result, err := r.pool.Exec(ctx, query, id, passwordHash, code)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() == 1, nil
}

// ClearExpiredVerificationTokens drops verification tokens whose expiry passed
// more than the grace period ago. Called by the background cleanup task.
func (r *UserRepository) ClearExpiredVerificationTokens(ctx context.Context, grace time.Duration) (int64, error) {
	query := `
		UPDATE users
		SET verification_token = NULL, token_expiry = NULL, updated_at = NOW()
		WHERE verification_token IS NOT NULL AND token_expiry < NOW() - make_interval(secs => $1)
	`

	result, err := r.pool.Exec(ctx, query, grace.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired verification tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
