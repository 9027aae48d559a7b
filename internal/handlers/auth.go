package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/models"
	"github.com/phishquest/phishquest-api/internal/services"
	pkgauth "github.com/phishquest/phishquest-api/pkg/auth"
	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
)

// AuthServiceInterface defines the interface for account security business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*services.AuthResponse, error)
	VerifyEmail(ctx context.Context, token string) (*services.AuthResponse, error)
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	Recover(ctx context.Context, email, code, newPassword, ipAddress string) (*services.AuthResponse, error)
	GetUser(ctx context.Context, userID int64) (*services.UserResponse, error)
}

// AuthHandler handles registration, login and recovery HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=20"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RecoverRequest represents the request body for account recovery
type RecoverRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"verification_code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// LoginResponse carries the outcome of the password phase. Exactly one of the
// continuation flags is set when a further step is required.
type LoginResponse struct {
	Token            string                 `json:"token,omitempty"`
	User             *services.UserResponse `json:"user,omitempty"`
	RequiresTwoFA    bool                   `json:"requires_2fa,omitempty"`
	Requires2FASetup bool                   `json:"requires_setup_2fa,omitempty"`

	// UserID identifies the account for the verify-2fa-login phase
	UserID int64 `json:"user_id,omitempty"`
}

// VerifyResponse is returned by the token introspection endpoint
type VerifyResponse struct {
	User      *services.UserResponse `json:"user"`
	TokenType string                 `json:"token_type"`
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	resp, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password, req.CaptchaToken, ipAddress)
	if err != nil {
		var pve *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrCaptchaFailed):
			pkghttp.WriteError(w, http.StatusBadRequest, "captcha_failed", "Captcha verification failed")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username or email is already registered")
		case errors.As(err, &pve), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// VerifyEmail consumes an emailed verification link
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	resp, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Verification token is required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Verification token not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Email address is already verified")
		case errors.Is(err, models.ErrTokenExpired):
			pkghttp.WriteError(w, http.StatusBadRequest, "token_expired", "Verification link has expired, please register again")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Login handles the password phase of authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		case errors.Is(err, models.ErrEmailNotVerified):
			pkghttp.WriteForbidden(w, "Email address must be verified before logging in")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	resp := &LoginResponse{
		Token:            result.Token,
		User:             result.User,
		RequiresTwoFA:    result.RequiresTwoFA,
		Requires2FASetup: result.RequiresSetup2FA,
	}
	if result.RequiresTwoFA {
		resp.UserID = result.UserID
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Verify returns the account behind a valid token
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &VerifyResponse{
		User:      user,
		TokenType: claims.Type,
	})
}

// Recover resets a forgotten password against a second factor
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	resp, err := h.service.Recover(r.Context(), req.Email, req.Code, req.NewPassword, ipAddress)
	if err != nil {
		var pve *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "No account found for this email address")
		case errors.Is(err, models.ErrTwoFARequired):
			pkghttp.WriteForbidden(w, "Account recovery requires two-factor authentication to be enabled")
		case errors.Is(err, models.ErrInvalidTwoFACode):
			pkghttp.WriteUnauthorized(w, "Invalid verification code")
		case errors.As(err, &pve):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
