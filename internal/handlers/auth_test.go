package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishquest/phishquest-api/internal/models"
	"github.com/phishquest/phishquest-api/internal/services"
)

func TestAuthHandler_Register(t *testing.T) {
	validBody := RegisterRequest{
		Username:     "player_one",
		Email:        "player@example.com",
		Password:     "Str0ng!Passw0rd",
		CaptchaToken: "captcha-token",
	}

	t.Run("success", func(t *testing.T) {
		var gotCaptcha string
		service := &mockAuthService{
			RegisterFunc: func(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*services.AuthResponse, error) {
				gotCaptcha = captchaToken
				return &services.AuthResponse{Token: "setup-token", User: testUserResponse()}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Register(rec, newJSONRequest(t, http.MethodPost, "/api/auth/register", validBody))

		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decodeBody[services.AuthResponse](t, rec)
		assert.Equal(t, "setup-token", resp.Token)
		assert.Equal(t, "player_one", resp.User.Username)
		assert.Equal(t, "captcha-token", gotCaptcha)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := NewAuthHandler(&mockAuthService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		handler.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name string
			body RegisterRequest
		}{
			{"missing username", RegisterRequest{Email: "a@b.com", Password: "x"}},
			{"username too short", RegisterRequest{Username: "ab", Email: "a@b.com", Password: "x"}},
			{"invalid email", RegisterRequest{Username: "player", Email: "not-an-email", Password: "x"}},
			{"missing password", RegisterRequest{Username: "player", Email: "a@b.com"}},
		}

		handler := NewAuthHandler(&mockAuthService{}, nil)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				handler.Register(rec, newJSONRequest(t, http.MethodPost, "/api/auth/register", tt.body))
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("service error mapping", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"captcha failed", models.ErrCaptchaFailed, http.StatusBadRequest, "captcha_failed"},
			{"duplicate account", models.ErrConflict, http.StatusConflict, "conflict"},
			{"internal failure", assertAnError, http.StatusInternalServerError, "internal_error"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := &mockAuthService{
					RegisterFunc: func(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*services.AuthResponse, error) {
						return nil, tt.err
					},
				}
				handler := NewAuthHandler(service, nil)

				rec := httptest.NewRecorder()
				handler.Register(rec, newJSONRequest(t, http.MethodPost, "/api/auth/register", validBody))

				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.Equal(t, tt.wantCode, decodeBody[ErrorResponseBody](t, rec).Error)
			})
		}
	})
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service := &mockAuthService{
			VerifyEmailFunc: func(ctx context.Context, token string) (*services.AuthResponse, error) {
				assert.Equal(t, "tok-123", token)
				return &services.AuthResponse{Token: "session-token", User: testUserResponse()}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify-email?token=tok-123", nil)
		rec := httptest.NewRecorder()
		handler.VerifyEmail(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "session-token", decodeBody[services.AuthResponse](t, rec).Token)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name        string
			err         error
			wantStatus  int
			wantErrCode string
		}{
			{"missing token", models.ErrBadRequest, http.StatusBadRequest, "bad_request"},
			{"unknown token", models.ErrNotFound, http.StatusNotFound, "not_found"},
			{"already verified", models.ErrConflict, http.StatusConflict, "conflict"},
			{"expired link", models.ErrTokenExpired, http.StatusBadRequest, "token_expired"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := &mockAuthService{
					VerifyEmailFunc: func(ctx context.Context, token string) (*services.AuthResponse, error) {
						return nil, tt.err
					},
				}
				handler := NewAuthHandler(service, nil)

				req := httptest.NewRequest(http.MethodGet, "/api/auth/verify-email?token=x", nil)
				rec := httptest.NewRecorder()
				handler.VerifyEmail(rec, req)

				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.Equal(t, tt.wantErrCode, decodeBody[ErrorResponseBody](t, rec).Error)
			})
		}
	})
}

func TestAuthHandler_Login(t *testing.T) {
	body := LoginRequest{Email: "player@example.com", Password: "Str0ng!Passw0rd"}

	t.Run("full session", func(t *testing.T) {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
				return &services.LoginResult{Token: "session-token", User: testUserResponse()}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", body))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[LoginResponse](t, rec)
		assert.Equal(t, "session-token", resp.Token)
		assert.False(t, resp.RequiresTwoFA)
		assert.False(t, resp.Requires2FASetup)
	})

	t.Run("2fa challenge withholds token", func(t *testing.T) {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
				return &services.LoginResult{RequiresTwoFA: true, UserID: 42}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", body))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[LoginResponse](t, rec)
		assert.True(t, resp.RequiresTwoFA)
		assert.Empty(t, resp.Token)
		assert.Equal(t, int64(42), resp.UserID, "the challenge names the account for the next phase")
	})

	t.Run("enrollment outstanding returns setup token", func(t *testing.T) {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
				return &services.LoginResult{RequiresSetup2FA: true, Token: "setup-token", User: testUserResponse()}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"requires_setup_2fa":true`)
		resp := decodeBody[LoginResponse](t, rec)
		assert.True(t, resp.Requires2FASetup)
		assert.Equal(t, "setup-token", resp.Token)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
				return nil, models.ErrUnauthorized
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", body))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", decodeBody[ErrorResponseBody](t, rec).Message)
	})

	t.Run("unverified email", func(t *testing.T) {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
				return nil, models.ErrEmailNotVerified
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, newJSONRequest(t, http.MethodPost, "/api/auth/login", body))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAuthHandler_Verify(t *testing.T) {
	t.Run("returns user and token type", func(t *testing.T) {
		service := &mockAuthService{
			GetUserFunc: func(ctx context.Context, userID int64) (*services.UserResponse, error) {
				assert.Equal(t, int64(42), userID)
				return testUserResponse(), nil
			},
		}
		handler := NewAuthHandler(service, nil)

		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), 42, models.TokenTypeSetup)
		rec := httptest.NewRecorder()
		handler.Verify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[VerifyResponse](t, rec)
		assert.Equal(t, models.TokenTypeSetup, resp.TokenType)
		assert.Equal(t, int64(42), resp.User.ID)
	})

	t.Run("no claims", func(t *testing.T) {
		handler := NewAuthHandler(&mockAuthService{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		rec := httptest.NewRecorder()
		handler.Verify(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deleted account", func(t *testing.T) {
		service := &mockAuthService{
			GetUserFunc: func(ctx context.Context, userID int64) (*services.UserResponse, error) {
				return nil, models.ErrNotFound
			},
		}
		handler := NewAuthHandler(service, nil)

		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), 42, models.TokenTypeSession)
		rec := httptest.NewRecorder()
		handler.Verify(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandler_Recover(t *testing.T) {
	body := RecoverRequest{Email: "player@example.com", Code: "AABBCCDD", NewPassword: "N3w!Passw0rd"}

	t.Run("success", func(t *testing.T) {
		service := &mockAuthService{
			RecoverFunc: func(ctx context.Context, email, code, newPassword, ipAddress string) (*services.AuthResponse, error) {
				assert.Equal(t, "AABBCCDD", code)
				return &services.AuthResponse{Token: "session-token", User: testUserResponse()}, nil
			},
		}
		handler := NewAuthHandler(service, nil)

		rec := httptest.NewRecorder()
		handler.Recover(rec, newJSONRequest(t, http.MethodPost, "/api/auth/recover-account", body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "session-token", decodeBody[services.AuthResponse](t, rec).Token)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
		}{
			{"unknown account", models.ErrNotFound, http.StatusNotFound},
			{"2fa not enabled", models.ErrTwoFARequired, http.StatusForbidden},
			{"wrong code", models.ErrInvalidTwoFACode, http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := &mockAuthService{
					RecoverFunc: func(ctx context.Context, email, code, newPassword, ipAddress string) (*services.AuthResponse, error) {
						return nil, tt.err
					},
				}
				handler := NewAuthHandler(service, nil)

				rec := httptest.NewRecorder()
				handler.Recover(rec, newJSONRequest(t, http.MethodPost, "/api/auth/recover-account", body))

				assert.Equal(t, tt.wantStatus, rec.Code)
			})
		}
	})
}
