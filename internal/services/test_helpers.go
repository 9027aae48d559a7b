package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/phishquest/phishquest-api/internal/models"
	pkglogger "github.com/phishquest/phishquest-api/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc                          func(ctx context.Context, id int64) (*models.User, error)
	GetByEmailFunc                       func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc                    func(ctx context.Context, username string) (*models.User, error)
	GetByVerificationTokenFunc           func(ctx context.Context, token string) (*models.User, error)
	CreateFunc                           func(ctx context.Context, user *models.User) (*models.User, error)
	MarkEmailVerifiedFunc                func(ctx context.Context, id int64) error
	EnableTwoFAFunc                      func(ctx context.Context, id int64, secret string, backupCodes []string) error
	ConsumeBackupCodeFunc                func(ctx context.Context, id int64, code string) (bool, error)
	UpdatePasswordHashFunc               func(ctx context.Context, id int64, passwordHash string) error
	ResetPasswordConsumingBackupCodeFunc func(ctx context.Context, id int64, passwordHash, code string) (bool, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if m.GetByVerificationTokenFunc != nil {
		return m.GetByVerificationTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	created := *user
	created.ID = 1
	return &created, nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) EnableTwoFA(ctx context.Context, id int64, secret string, backupCodes []string) error {
	if m.EnableTwoFAFunc != nil {
		return m.EnableTwoFAFunc(ctx, id, secret, backupCodes)
	}
	return nil
}

func (m *MockUserRepository) ConsumeBackupCode(ctx context.Context, id int64, code string) (bool, error) {
	if m.ConsumeBackupCodeFunc != nil {
		return m.ConsumeBackupCodeFunc(ctx, id, code)
	}
	return false, nil
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) ResetPasswordConsumingBackupCode(ctx context.Context, id int64, passwordHash, code string) (bool, error) {
	if m.ResetPasswordConsumingBackupCodeFunc != nil {
		return m.ResetPasswordConsumingBackupCodeFunc(ctx, id, passwordHash, code)
	}
	return false, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockCaptchaVerifier implements captcha.Verifier for testing
type MockCaptchaVerifier struct {
	VerifyFunc func(ctx context.Context, token, remoteIP string) error
}

func (m *MockCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token, remoteIP)
	}
	return nil
}

// discardLogger returns a logger that drops everything
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// discardAuditLogger returns an audit logger backed by the discard logger
func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// NewTestUser creates a verified user without 2FA
func NewTestUser(id int64, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:               id,
		Username:         username,
		Email:            email,
		EmailVerified:    true,
		TwoFABackupCodes: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewTestUserWithPassword creates a user with the given password hash
func NewTestUserWithPassword(id int64, username, email, passwordHash string) *models.User {
	user := NewTestUser(id, username, email)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserUnverified creates a user holding a pending verification token
func NewTestUserUnverified(id int64, username, email, token string, expiry time.Time) *models.User {
	user := NewTestUser(id, username, email)
	user.EmailVerified = false
	user.VerificationToken = &token
	user.TokenExpiry = &expiry
	return user
}

// NewTestUserWithTwoFA creates a user with 2FA enabled
func NewTestUserWithTwoFA(id int64, username, email, secret string, backupCodes []string) *models.User {
	user := NewTestUser(id, username, email)
	user.TwoFASecret = &secret
	user.TwoFAEnabled = true
	user.TwoFABackupCodes = backupCodes
	return user
}
