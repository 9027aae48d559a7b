package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors
	ErrEmailNotVerified  = errors.New("email address not verified")
	ErrCaptchaFailed     = errors.New("captcha verification failed")
	ErrTwoFARequired     = errors.New("two-factor authentication is required")
	ErrInvalidTwoFACode  = errors.New("invalid verification code or backup code")
	ErrTokenExpired      = errors.New("verification token expired")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)
