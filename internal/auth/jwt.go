package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the registered claim set of an LMS access token. The portal
// never holds the signing key, so tokens are inspected, not verified.
type Claims struct {
	jwt.RegisteredClaims
}

var ErrNoExpiry = errors.New("token_without_expiry")

func ParseUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := ParseUnverified(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// ExpiresWithin reports whether the token expires before now+leeway.
// Opaque or expiry-less tokens report false and are left to the API to judge.
func ExpiresWithin(tokenString string, now time.Time, leeway time.Duration) bool {
	exp, err := ExpiresAt(tokenString)
	if err != nil {
		return false
	}
	return !exp.After(now.Add(leeway))
}
