package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/models"
	"github.com/phishquest/phishquest-api/internal/services"
	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
)

// assertAnError stands in for unexpected service failures
var assertAnError = errors.New("unexpected failure")

// ErrorResponseBody mirrors the wire shape of error responses
type ErrorResponseBody = pkghttp.ErrorResponse

// Func-field mocks: tests set only the methods they expect to be called.

type mockAuthService struct {
	RegisterFunc    func(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*services.AuthResponse, error)
	VerifyEmailFunc func(ctx context.Context, token string) (*services.AuthResponse, error)
	LoginFunc       func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	RecoverFunc     func(ctx context.Context, email, code, newPassword, ipAddress string) (*services.AuthResponse, error)
	GetUserFunc     func(ctx context.Context, userID int64) (*services.UserResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, username, email, password, captchaToken, ipAddress string) (*services.AuthResponse, error) {
	return m.RegisterFunc(ctx, username, email, password, captchaToken, ipAddress)
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) (*services.AuthResponse, error) {
	return m.VerifyEmailFunc(ctx, token)
}

func (m *mockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
	return m.LoginFunc(ctx, email, password, ipAddress)
}

func (m *mockAuthService) Recover(ctx context.Context, email, code, newPassword, ipAddress string) (*services.AuthResponse, error) {
	return m.RecoverFunc(ctx, email, code, newPassword, ipAddress)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID int64) (*services.UserResponse, error) {
	return m.GetUserFunc(ctx, userID)
}

type mockTwoFAService struct {
	BeginEnrollmentFunc   func(ctx context.Context, userID int64) (*services.EnrollmentResponse, error)
	ConfirmEnrollmentFunc func(ctx context.Context, userID int64, secret, code string) (*services.ConfirmResponse, error)
	VerifyLoginCodeFunc   func(ctx context.Context, userID int64, code, ipAddress string) (*services.AuthResponse, error)
}

func (m *mockTwoFAService) BeginEnrollment(ctx context.Context, userID int64) (*services.EnrollmentResponse, error) {
	return m.BeginEnrollmentFunc(ctx, userID)
}

func (m *mockTwoFAService) ConfirmEnrollment(ctx context.Context, userID int64, secret, code string) (*services.ConfirmResponse, error) {
	return m.ConfirmEnrollmentFunc(ctx, userID, secret, code)
}

func (m *mockTwoFAService) VerifyLoginCode(ctx context.Context, userID int64, code, ipAddress string) (*services.AuthResponse, error) {
	return m.VerifyLoginCodeFunc(ctx, userID, code, ipAddress)
}

type mockProgressService struct {
	GetFunc  func(ctx context.Context, userID int64) (*models.Progress, error)
	SaveFunc func(ctx context.Context, progress *models.Progress) (*models.Progress, error)
}

func (m *mockProgressService) Get(ctx context.Context, userID int64) (*models.Progress, error) {
	return m.GetFunc(ctx, userID)
}

func (m *mockProgressService) Save(ctx context.Context, progress *models.Progress) (*models.Progress, error) {
	return m.SaveFunc(ctx, progress)
}

func testUserResponse() *services.UserResponse {
	return &services.UserResponse{
		ID:            42,
		Username:      "player_one",
		Email:         "player@example.com",
		EmailVerified: true,
		TwoFAEnabled:  false,
	}
}

// newJSONRequest builds a request with a JSON body
func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withClaims attaches token claims the way AuthMiddleware would
func withClaims(r *http.Request, userID int64, tokenType string) *http.Request {
	claims := &models.TokenClaims{
		Type:             tokenType,
		UserID:           userID,
		Username:         "player_one",
		RegisteredClaims: jwt.RegisteredClaims{},
	}
	ctx := context.WithValue(r.Context(), auth.UserContextKey, claims)
	return r.WithContext(ctx)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
