// Package session holds the signed-in user: the bearer token sent to the
// finance backend and the explicit user id chat history is keyed by.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	keyToken  = "session.token"
	keyUserID = "session.user_id"
)

var (
	// ErrNoToken is returned when no bearer token is stored.
	ErrNoToken = errors.New("no session token")
	// ErrNoUser is returned when no current user is set.
	ErrNoUser = errors.New("no current user")
)

// Store is the persistence the session needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Manager caches the session in memory and writes every change through
// to the Store.
type Manager struct {
	store  Store
	logger *applog.Logger

	mu     sync.RWMutex
	loaded bool
	token  string
	userID string
}

func NewManager(store Store, logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Manager{store: store, logger: logger.WithComponent(applog.ComponentAuth)}
}

func (m *Manager) load(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	token, err := m.get(ctx, keyToken)
	if err != nil {
		return err
	}
	userID, err := m.get(ctx, keyUserID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		m.token, m.userID, m.loaded = token, userID, true
	}
	return nil
}

func (m *Manager) get(ctx context.Context, key string) (string, error) {
	v, err := m.store.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

// Token returns the stored bearer token or ErrNoToken.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if err := m.load(ctx); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// CurrentUserID returns the id of the signed-in user or ErrNoUser.
func (m *Manager) CurrentUserID(ctx context.Context) (string, error) {
	if err := m.load(ctx); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.userID == "" {
		return "", ErrNoUser
	}
	return m.userID, nil
}

// Login stores a new token and user id.
func (m *Manager) Login(ctx context.Context, token, userID string) error {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" {
		return ErrNoToken
	}
	if userID == "" {
		return ErrNoUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SetSetting(ctx, keyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := m.store.SetSetting(ctx, keyUserID, userID); err != nil {
		return fmt.Errorf("store user id: %w", err)
	}
	m.token, m.userID, m.loaded = token, userID, true

	m.logger.InfoContext(ctx, "Session started", applog.FieldUserID, userID)
	return nil
}

// ClearToken drops the bearer token but keeps the user id, so local chat
// history stays addressable after the backend rejects the token.
func (m *Manager) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.DeleteSetting(ctx, keyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	m.token = ""
	return nil
}

// Logout removes both token and user id.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.DeleteSetting(ctx, keyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := m.store.DeleteSetting(ctx, keyUserID); err != nil {
		return fmt.Errorf("clear user id: %w", err)
	}
	m.token, m.userID, m.loaded = "", "", true

	m.logger.InfoContext(ctx, "Session ended")
	return nil
}
