package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/captcha"
	"github.com/phishquest/phishquest-api/internal/models"
	pkgauth "github.com/phishquest/phishquest-api/pkg/auth"
	pkglogger "github.com/phishquest/phishquest-api/pkg/logger"
)

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	EnableTwoFA(ctx context.Context, id int64, secret string, backupCodes []string) error
	ConsumeBackupCode(ctx context.Context, id int64, code string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	ResetPasswordConsumingBackupCode(ctx context.Context, id int64, passwordHash, code string) (bool, error)
}

// AuthPolicy holds the deployment-mode decisions for the account security core
type AuthPolicy struct {
	// RequireTwoFA withholds session tokens until 2FA enrollment is confirmed
	RequireTwoFA bool
	// AutoVerifyEmail marks accounts verified at registration
	AutoVerifyEmail bool
	// VerificationTokenExpiry bounds the lifetime of emailed verification links
	VerificationTokenExpiry time.Duration
}

// AuthService orchestrates registration, email verification, the password
// phase of login, and 2FA-gated account recovery
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	totpMgr     *auth.TOTPManager
	verifier    captcha.Verifier
	email       EmailService
	policy      AuthPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	tm *auth.TokenManager,
	totpMgr *auth.TOTPManager,
	verifier captcha.Verifier,
	email EmailService,
	policy AuthPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		totpMgr:     totpMgr,
		verifier:    verifier,
		email:       email,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	TwoFAEnabled  bool   `json:"two_fa_enabled"`
}

// AuthResponse represents the response from token-issuing operations
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// LoginResult carries the next required step after the password phase.
// At most one of RequiresTwoFA / RequiresSetup2FA is set; a full session
// token is only present when neither gate applies.
type LoginResult struct {
	RequiresTwoFA    bool
	RequiresSetup2FA bool
	UserID           int64
	Token            string
	User             *UserResponse
}

// Register creates a new account after bot-check and input validation.
// The returned token is setup-scoped while 2FA enrollment is outstanding.
func (s *AuthService) Register(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := pkgauth.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, captchaToken, ipAddress); err != nil {
		if errors.Is(err, models.ErrCaptchaFailed) {
			s.logger.Info("registration blocked by captcha")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "register_failed",
				IPAddress:     ipAddress,
				FailureReason: "captcha_rejected",
				Success:       false,
			})
			return nil, models.ErrCaptchaFailed
		}
		s.logger.Error("captcha verification error", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Pre-check both unique fields; the insert's constraints close the race
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("registration failed: email already registered")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		s.logger.Info("registration failed: username taken")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:      username,
		Email:         email,
		PasswordHash:  hashedPassword,
		EmailVerified: s.policy.AutoVerifyEmail,
	}

	if !s.policy.AutoVerifyEmail {
		token, err := pkgauth.GenerateVerificationToken()
		if err != nil {
			s.logger.Error("failed to generate verification token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		expiry := time.Now().Add(s.policy.VerificationTokenExpiry)
		user.VerificationToken = &token
		user.TokenExpiry = &expiry
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.policy.AutoVerifyEmail && createdUser.VerificationToken != nil {
		// Delivery failure is not fatal: the account exists and a verified
		// deployment can resend out of band
		if err := s.email.SendVerificationEmail(ctx, createdUser.Email, *createdUser.VerificationToken, *createdUser.TokenExpiry); err != nil {
			s.logger.Error("failed to send verification email",
				slog.Int64("user_id", createdUser.ID),
				slog.Any("error", err))
		}
	}

	token, err := s.mintPostPasswordToken(createdUser)
	if err != nil {
		s.logger.Error("failed to generate token", slog.Int64("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.Int64("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, ipAddress, nil)

	return &AuthResponse{
		Token: token,
		User:  userModelToResponse(createdUser),
	}, nil
}

// VerifyEmail consumes a verification token and logs the user in.
// Distinct failures: missing token (ErrBadRequest), unknown token
// (ErrNotFound), already-verified account (ErrConflict), expired token
// (ErrTokenExpired).
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*AuthResponse, error) {
	if token = strings.TrimSpace(token); token == "" {
		return nil, models.ErrBadRequest
	}

	user, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found")
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to look up verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.EmailVerified {
		return nil, models.ErrConflict
	}

	if user.TokenExpiry == nil || time.Now().After(*user.TokenExpiry) {
		s.logger.Info("verification token expired", slog.Int64("user_id", user.ID))
		return nil, models.ErrTokenExpired
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		s.logger.Error("failed to mark email verified", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.EmailVerified = true

	sessionToken, err := s.mintPostPasswordToken(user)
	if err != nil {
		s.logger.Error("failed to generate token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAccountAction("email_verified", user.ID, "", nil)

	return &AuthResponse{
		Token: sessionToken,
		User:  userModelToResponse(user),
	}, nil
}

// Login performs the password phase. It never issues a session token when
// 2FA is mandatory: enrolled accounts get a challenge, unenrolled accounts
// get a setup-scoped token.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	if !user.EmailVerified {
		s.logger.Info("login blocked: email not verified", slog.Int64("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, models.ErrEmailNotVerified
	}

	if user.TwoFAEnabled {
		s.logger.Info("login awaiting 2FA", slog.Int64("user_id", user.ID))
		return &LoginResult{
			RequiresTwoFA: true,
			UserID:        user.ID,
		}, nil
	}

	if s.policy.RequireTwoFA {
		setupToken, err := s.tm.GenerateSetupToken(user.ID, user.Username)
		if err != nil {
			s.logger.Error("failed to generate setup token", slog.Int64("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.logger.Info("login requires 2FA enrollment", slog.Int64("user_id", user.ID))
		return &LoginResult{
			RequiresSetup2FA: true,
			UserID:           user.ID,
			Token:            setupToken,
		}, nil
	}

	sessionToken, err := s.tm.GenerateSessionToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &LoginResult{
		UserID: user.ID,
		Token:  sessionToken,
		User:   userModelToResponse(user),
	}, nil
}

// Recover resets a forgotten password, gated solely on second-factor
// possession. The password replacement and any backup-code consumption
// happen in one store operation.
func (s *AuthService) Recover(ctx context.Context, email, code, newPassword, ipAddress string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("recovery failed: user not found")
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.TwoFAEnabled || user.TwoFASecret == nil {
		s.logger.Info("recovery blocked: 2FA not enabled", slog.Int64("user_id", user.ID))
		return nil, models.ErrTwoFARequired
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// TOTP first, then the backup-code path. The backup-code branch consumes
	// the code and replaces the password atomically.
	valid, err := s.totpMgr.ValidateCode(*user.TwoFASecret, code)
	if err != nil {
		s.logger.Error("TOTP validation error", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if valid {
		if err := s.repo.UpdatePasswordHash(ctx, user.ID, hashedPassword); err != nil {
			s.logger.Error("failed to update password hash", slog.Int64("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	} else {
		consumed, err := s.repo.ResetPasswordConsumingBackupCode(ctx, user.ID, hashedPassword, auth.NormalizeBackupCode(code))
		if err != nil {
			s.logger.Error("failed to consume backup code", slog.Int64("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !consumed {
			s.logger.Info("recovery failed: invalid code", slog.Int64("user_id", user.ID))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "recovery_failed",
				UserID:        user.ID,
				IPAddress:     ipAddress,
				FailureReason: "invalid_code",
				Success:       false,
			})
			return nil, models.ErrInvalidTwoFACode
		}
	}

	sessionToken, err := s.tm.GenerateSessionToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account recovered", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAccountAction("account_recovered", user.ID, ipAddress, nil)

	return &AuthResponse{
		Token: sessionToken,
		User:  userModelToResponse(user),
	}, nil
}

// GetUser returns the profile for an authenticated user
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

// mintPostPasswordToken issues the token appropriate to the account's 2FA
// state: setup-scoped while mandatory enrollment is outstanding, session
// otherwise
func (s *AuthService) mintPostPasswordToken(user *models.User) (string, error) {
	if s.policy.RequireTwoFA && !user.TwoFAEnabled {
		return s.tm.GenerateSetupToken(user.ID, user.Username)
	}
	return s.tm.GenerateSessionToken(user.ID, user.Username)
}

// userModelToResponse converts a user model to a response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		TwoFAEnabled:  user.TwoFAEnabled,
	}
}
