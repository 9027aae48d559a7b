package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/models"
	"github.com/phishquest/phishquest-api/internal/services"
	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
)

// TwoFAServiceInterface defines the interface for 2FA business logic
type TwoFAServiceInterface interface {
	BeginEnrollment(ctx context.Context, userID int64) (*services.EnrollmentResponse, error)
	ConfirmEnrollment(ctx context.Context, userID int64, secret, code string) (*services.ConfirmResponse, error)
	VerifyLoginCode(ctx context.Context, userID int64, code, ipAddress string) (*services.AuthResponse, error)
}

// TwoFAHandler handles 2FA enrollment and login verification HTTP requests
type TwoFAHandler struct {
	service  TwoFAServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewTwoFAHandler creates a new TwoFAHandler
func NewTwoFAHandler(service TwoFAServiceInterface, ipConfig *pkghttp.IPConfig) *TwoFAHandler {
	return &TwoFAHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// ConfirmEnrollmentRequest represents the request body for enrollment confirmation
type ConfirmEnrollmentRequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"verification_code" validate:"required,len=6"`
}

// VerifyLoginRequest represents the request body for the 2FA login phase.
// The user ID comes from the password phase's challenge response.
type VerifyLoginRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Code   string `json:"verification_code" validate:"required,min=6,max=8"`
}

// Setup begins 2FA enrollment for the authenticated user
func (h *TwoFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp, err := h.service.BeginEnrollment(r.Context(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Confirm completes 2FA enrollment by proving possession of the secret
func (h *TwoFAHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ConfirmEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.ConfirmEnrollment(r.Context(), claims.UserID, req.Secret, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTwoFACode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyLogin completes the second phase of login with a TOTP or backup code
func (h *TwoFAHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	resp, err := h.service.VerifyLoginCode(r.Context(), req.UserID, req.Code, ipAddress)
	if err != nil {
		switch {
		// Uniform response for unknown accounts, wrong codes, and accounts
		// without 2FA, so the endpoint cannot be used to probe user IDs
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrInvalidTwoFACode),
			errors.Is(err, models.ErrTwoFARequired):
			pkghttp.WriteUnauthorized(w, "Invalid verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
