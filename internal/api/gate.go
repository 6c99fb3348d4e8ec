package api

import (
	"sync"
)

// AuthGate lets exactly one 401 trigger the login redirect until Reset, so
// concurrent failing requests do not each redirect.
type AuthGate struct {
	mu         sync.Mutex
	loginURL   string
	redirected bool
	onRedirect func(loginURL string)
}

// NewAuthGate returns a gate announcing loginURL. onRedirect may be nil.
func NewAuthGate(loginURL string, onRedirect func(loginURL string)) *AuthGate {
	return &AuthGate{loginURL: loginURL, onRedirect: onRedirect}
}

// TryRedirectOnce fires the redirect callback if no redirect is pending and
// reports whether it did.
func (g *AuthGate) TryRedirectOnce() bool {
	g.mu.Lock()
	if g.redirected {
		g.mu.Unlock()
		return false
	}
	g.redirected = true
	cb, url := g.onRedirect, g.loginURL
	g.mu.Unlock()

	if cb != nil {
		cb(url)
	}
	return true
}

// Pending returns the login URL while a redirect is outstanding.
func (g *AuthGate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginURL, g.redirected
}

// Reset re-arms the gate, typically after a successful login.
func (g *AuthGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redirected = false
}
