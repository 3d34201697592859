package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type JWTClaims struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope,omitempty"` // user, admin
	jwt.RegisteredClaims
}

// RateLimitInfo describes the caller's current rate limit window.
type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}
