package api

import (
	"errors"
	"testing"
)

func TestAuthGateFiresOnceUntilReset(t *testing.T) {
	var urls []string
	g := NewAuthGate("/login", func(u string) { urls = append(urls, u) })

	if !g.TryRedirectOnce() {
		t.Fatal("first call should redirect")
	}
	if g.TryRedirectOnce() || g.TryRedirectOnce() {
		t.Fatal("subsequent calls must not redirect")
	}
	g.Reset()
	if _, pending := g.Pending(); pending {
		t.Fatal("reset should clear pending redirect")
	}
	if !g.TryRedirectOnce() {
		t.Fatal("redirect should fire again after reset")
	}
	if len(urls) != 2 || urls[0] != "/login" {
		t.Fatalf("callbacks = %v", urls)
	}
}

func TestAuthGateNilCallback(t *testing.T) {
	g := NewAuthGate("/login", nil)
	if !g.TryRedirectOnce() {
		t.Fatal("expected redirect")
	}
}

func TestAsAPIError(t *testing.T) {
	if AsAPIError(nil) != nil {
		t.Fatal("nil stays nil")
	}
	orig := &APIError{Status: 404, Message: "missing"}
	wrapped := errors.Join(errors.New("ctx"), orig)
	if AsAPIError(wrapped) != orig {
		t.Fatal("existing APIError should be returned")
	}
	plain := errors.New("dial tcp: refused")
	got := AsAPIError(plain)
	if got.Message != plain.Error() || !errors.Is(got, plain) {
		t.Fatalf("got %+v", got)
	}
}
