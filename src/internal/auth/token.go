package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew refreshes a little before the backend would reject the token.
const expirySkew = 10 * time.Second

// Claims represents the access token claims issued by the backend
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// ParseClaims reads the claims without verifying the signature. The portal
// does not hold the signing key; the backend stays the authority and this
// is only used to avoid sending a token that is certain to be rejected.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// tokenExpired is false for opaque tokens and tokens without exp.
func tokenExpired(token string, now time.Time) bool {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time.Add(-expirySkew))
}
