package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phishquest/phishquest-api/internal/database"
	"github.com/phishquest/phishquest-api/internal/models"
	"github.com/phishquest/phishquest-api/internal/repositories"
	pkgauth "github.com/phishquest/phishquest-api/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database wiring
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("phishquest"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// runMigrations executes all goose migrations against the container
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Goose needs a database/sql connection; adapt the pgx config
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"progress",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from the database wrapper
func InitializeRepositories(db *database.DB) (*repositories.UserRepository, *repositories.ProgressRepository) {
	return repositories.NewUserRepository(db), repositories.NewProgressRepository(db)
}

// SeedUser inserts a test user with a hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, username, email, password string, verified bool) (*models.User, error) {
	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, username, email, password_hash, email_verified, two_fa_enabled, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, username, email, hashedPassword, verified).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.TwoFAEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedUserWithTwoFA inserts a verified user with 2FA enabled and the given
// secret and backup codes
func SeedUserWithTwoFA(ctx context.Context, pool *pgxpool.Pool, username, email, password, secret string, backupCodes []string) (*models.User, error) {
	user, err := SeedUser(ctx, pool, username, email, password, true)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users
		SET two_fa_secret = $2, two_fa_enabled = TRUE, two_fa_backup_codes = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := pool.Exec(ctx, query, user.ID, secret, pq.Array(backupCodes)); err != nil {
		return nil, fmt.Errorf("failed to enable 2FA for seeded user: %w", err)
	}

	user.TwoFASecret = &secret
	user.TwoFAEnabled = true
	user.TwoFABackupCodes = backupCodes
	return user, nil
}

// SeedUnverifiedUser inserts a user holding a pending verification token
func SeedUnverifiedUser(ctx context.Context, pool *pgxpool.Pool, username, email, password, token string, expiry time.Time) (*models.User, error) {
	user, err := SeedUser(ctx, pool, username, email, password, false)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users
		SET verification_token = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := pool.Exec(ctx, query, user.ID, token, expiry); err != nil {
		return nil, fmt.Errorf("failed to set verification token: %w", err)
	}

	user.VerificationToken = &token
	user.TokenExpiry = &expiry
	return user, nil
}
