package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
// Tests override individual keys on top of this baseline.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "a-sufficiently-long-signing-secret")
	t.Setenv("DB_PASSWORD", "testpassword")
	t.Setenv("CAPTCHA_ENABLED", "false")
	t.Setenv("CAPTCHA_SECRET", "")
	t.Setenv("ENV", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "phishquest", cfg.Database.Name)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTokenExpiry)
	assert.Equal(t, 24*time.Hour, cfg.Auth.VerificationTokenExpiry)
	assert.True(t, cfg.Auth.RequireTwoFA, "2FA is mandatory by default")
	assert.True(t, cfg.Auth.AutoVerifyEmail)

	assert.Equal(t, 5, cfg.RateLimit.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.LoginWindow)
	assert.Equal(t, 10, cfg.RateLimit.RegisterMaxAttempts)
	assert.Equal(t, time.Hour, cfg.RateLimit.RegisterWindow)
	assert.Equal(t, 100, cfg.RateLimit.GeneralMaxRequests)

	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, 0.5, cfg.Captcha.ScoreThreshold)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_MissingDBPassword(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoad_CaptchaSecretRequiredWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CAPTCHA_ENABLED", "true")
	t.Setenv("CAPTCHA_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPTCHA_SECRET")
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		env        string
		shouldFail bool
	}{
		{"valid development secret", "sixteen-chars-ok", "development", false},
		{"too short for development", "short", "development", true},
		{"too short for production", "only-twenty-chars-xx", "production", true},
		{"valid production secret", "this-secret-is-at-least-32-chars!", "production", false},
		{"weak value rejected", "changeme", "development", true},
		{"weak value rejected case-insensitively", "CHANGEME", "development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if tt.shouldFail {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_TOKEN_EXPIRY", "1h")
	t.Setenv("REQUIRE_TWO_FA", "false")
	t.Setenv("RATE_LIMIT_LOGIN_MAX", "3")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Auth.SessionTokenExpiry)
	assert.False(t, cfg.Auth.RequireTwoFA)
	assert.Equal(t, 3, cfg.RateLimit.LoginMaxAttempts)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "pw",
		Name:     "phishquest",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=app password=pw dbname=phishquest sslmode=require",
		db.DSN())
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Run("development allows localhost variants", func(t *testing.T) {
		origins := parseAllowedOrigins("development")
		assert.Contains(t, origins, "http://localhost:5173")
	})

	t.Run("production defaults to none", func(t *testing.T) {
		t.Setenv("ALLOWED_ORIGINS", "")
		assert.Empty(t, parseAllowedOrigins("production"))
	})

	t.Run("production reads ALLOWED_ORIGINS", func(t *testing.T) {
		t.Setenv("ALLOWED_ORIGINS", "https://play.phishquest.io")
		assert.Equal(t, []string{"https://play.phishquest.io"}, parseAllowedOrigins("production"))
	})
}
