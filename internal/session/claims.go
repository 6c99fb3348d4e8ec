package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token carries no usable subject claim.
var ErrNoSubject = errors.New("token has no subject")

// SubjectFromToken reads the sub claim of a backend JWT. The signature is
// not checked here; the backend verifies the token on every call.
func SubjectFromToken(token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", ErrNoToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}
