package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/models"
	pkglogger "github.com/phishquest/phishquest-api/pkg/logger"
)

// TwoFAService manages TOTP enrollment and second-factor verification
type TwoFAService struct {
	repo        UserRepository
	totpMgr     *auth.TOTPManager
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewTwoFAService creates a new TwoFAService
func NewTwoFAService(
	repo UserRepository,
	totpMgr *auth.TOTPManager,
	tm *auth.TokenManager,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *TwoFAService {
	return &TwoFAService{
		repo:        repo,
		totpMgr:     totpMgr,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// EnrollmentResponse carries the artifacts the client needs to provision an
// authenticator app. The secret stays unconfirmed until ConfirmEnrollment.
type EnrollmentResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

// ConfirmResponse is returned once enrollment is proven. The backup codes are
// shown exactly once.
type ConfirmResponse struct {
	Token       string   `json:"token"`
	BackupCodes []string `json:"backup_codes"`
}

// BeginEnrollment generates a fresh secret and QR code for the user to scan.
// Nothing is persisted; an abandoned enrollment leaves no trace. Re-running
// replaces the pending secret with a new one.
func (s *TwoFAService) BeginEnrollment(ctx context.Context, userID int64) (*EnrollmentResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.TwoFAEnabled {
		s.logger.Info("enrollment refused: 2FA already enabled", slog.Int64("user_id", userID))
		return nil, models.ErrConflict
	}

	enrollment, err := s.totpMgr.GenerateEnrollment(user.Email)
	if err != nil {
		s.logger.Error("failed to generate enrollment", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("2FA enrollment started", slog.Int64("user_id", userID))

	return &EnrollmentResponse{
		Secret:     enrollment.Secret,
		OtpauthURL: enrollment.OtpauthURL,
		QRCode:     enrollment.QRCode,
	}, nil
}

// ConfirmEnrollment proves possession of the pending secret. Only a valid
// code persists the secret; the same call generates the backup codes and
// upgrades the caller to a full session.
func (s *TwoFAService) ConfirmEnrollment(ctx context.Context, userID int64, secret, code string) (*ConfirmResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.TwoFAEnabled {
		return nil, models.ErrConflict
	}

	valid, err := s.totpMgr.ValidateCode(secret, code)
	if err != nil {
		s.logger.Error("TOTP validation error", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !valid {
		s.logger.Info("enrollment confirmation failed: invalid code", slog.Int64("user_id", userID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "2fa_enrollment_failed",
			UserID:        userID,
			FailureReason: "invalid_code",
			Success:       false,
		})
		return nil, models.ErrInvalidTwoFACode
	}

	backupCodes, err := s.totpMgr.GenerateBackupCodes(auth.BackupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.EnableTwoFA(ctx, userID, secret, backupCodes); err != nil {
		s.logger.Error("failed to enable 2FA", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sessionToken, err := s.tm.GenerateSessionToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("2FA enabled", slog.Int64("user_id", userID))
	s.auditLogger.LogAccountAction("2fa_enabled", userID, "", nil)

	return &ConfirmResponse{
		Token:       sessionToken,
		BackupCodes: backupCodes,
	}, nil
}

// VerifyLoginCode completes the second phase of login. The code may be a
// TOTP code or a single-use backup code; both paths fail with the same error
// so a response does not reveal which kind was attempted.
func (s *TwoFAService) VerifyLoginCode(ctx context.Context, userID int64, code, ipAddress string) (*AuthResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.TwoFAEnabled || user.TwoFASecret == nil {
		s.logger.Info("2FA verification refused: not enabled", slog.Int64("user_id", user.ID))
		return nil, models.ErrTwoFARequired
	}

	valid, err := s.totpMgr.ValidateCode(*user.TwoFASecret, code)
	if err != nil {
		s.logger.Error("TOTP validation error", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	usedBackupCode := false
	if !valid {
		consumed, err := s.repo.ConsumeBackupCode(ctx, user.ID, auth.NormalizeBackupCode(code))
		if err != nil {
			s.logger.Error("failed to consume backup code", slog.Int64("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !consumed {
			s.logger.Info("2FA verification failed", slog.Int64("user_id", user.ID))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "2fa_failed",
				UserID:        user.ID,
				IPAddress:     ipAddress,
				FailureReason: "invalid_code",
				Success:       false,
			})
			return nil, models.ErrInvalidTwoFACode
		}
		usedBackupCode = true
	}

	sessionToken, err := s.tm.GenerateSessionToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metadata := map[string]string{"method": "totp"}
	if usedBackupCode {
		metadata["method"] = "backup_code"
		remaining := len(user.TwoFABackupCodes) - 1
		if remaining < 0 {
			remaining = 0
		}
		s.logger.Warn("backup code consumed",
			slog.Int64("user_id", user.ID),
			slog.Int("codes_remaining", remaining))
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  metadata,
	})

	return &AuthResponse{
		Token: sessionToken,
		User:  userModelToResponse(user),
	}, nil
}
