package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestSubjectFromToken(t *testing.T) {
	withSub := signed(t, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := signed(t, jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	noSub := signed(t, jwt.RegisteredClaims{Issuer: "finance"})

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "subject", token: withSub, want: "user-42"},
		{name: "bearer prefix", token: "Bearer " + withSub, want: "user-42"},
		{name: "expired tokens still name their user", token: expired, want: "user-7"},
		{name: "no subject", token: noSub, wantErr: ErrNoSubject},
		{name: "empty", token: "  ", wantErr: ErrNoToken},
		{name: "opaque token", token: "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubjectFromToken(tt.token)
			if tt.want != "" {
				if err != nil || got != tt.want {
					t.Fatalf("SubjectFromToken() = %q, %v, want %q", got, err, tt.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("SubjectFromToken() = %q, want error", got)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("SubjectFromToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
