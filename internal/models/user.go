package models

import (
	"time"
)

type User struct {
	ID                int64
	Username          string
	Email             string
	PasswordHash      string
	EmailVerified     bool
	VerificationToken *string    // present only while unverified
	TokenExpiry       *time.Time // cleared together with the token on consumption
	TwoFASecret       *string    // base32; persisted only after confirmed enrollment
	TwoFAEnabled      bool
	TwoFABackupCodes  []string // unused single-use codes, stored uppercased
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
