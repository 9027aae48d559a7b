package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types. A "setup" token proves password possession only and is accepted
// solely by the 2FA enrollment endpoints; a "session" token is full privilege.
const (
	TokenTypeSession = "session"
	TokenTypeSetup   = "setup"
)

type TokenClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}
