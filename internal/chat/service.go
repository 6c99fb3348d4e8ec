package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const (
	DefaultContextTurns = 10
	DefaultHistoryLimit = 100
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoUser       = errors.New("user id is required")
)

// Backend is the remote assistant endpoint.
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (any, error)
}

// HistoryStore persists conversation turns per user.
type HistoryStore interface {
	RecentTurns(ctx context.Context, userID string, limit int) ([]core.Turn, error)
	AppendTurns(ctx context.Context, userID string, keep int, turns ...core.Turn) error
	ClearHistory(ctx context.Context, userID string) error
}

type Service struct {
	backend      Backend
	store        HistoryStore
	contextTurns int
	historyLimit int
	now          func() time.Time
	logger       *applog.Logger
}

type Option func(*Service)

// WithContextTurns sets how many previous turns accompany each message.
func WithContextTurns(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.contextTurns = n
		}
	}
}

// WithHistoryLimit sets how many turns are kept per user.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(backend Backend, store HistoryStore, opts ...Option) *Service {
	s := &Service{
		backend:      backend,
		store:        store,
		contextTurns: DefaultContextTurns,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		logger:       applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentChat)
	return s
}

// Send posts text with the user's recent turns as context and returns the
// assistant's reply. Both turns are stored only when the backend answered.
// Backend failures are returned as *api.APIError with a retry hint when one
// applies.
func (s *Service) Send(ctx context.Context, userID, text string) (core.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Turn{}, ErrEmptyMessage
	}
	if userID == "" {
		return core.Turn{}, ErrNoUser
	}

	history, err := s.store.RecentTurns(ctx, userID, s.contextTurns)
	if err != nil {
		return core.Turn{}, fmt.Errorf("load chat context: %w", err)
	}

	userTurn := core.Turn{Role: core.RoleUser, Text: text, At: s.now().UTC()}
	body, err := s.backend.Chat(ctx, api.ChatRequest{Query: text, Context: history})
	if err != nil {
		apiErr := NormalizeError(err)
		s.logger.LogError(ctx, "Chat request failed", apiErr, applog.OpChat,
			applog.NewFields().WithUser(userID))
		return core.Turn{}, apiErr
	}

	reply := core.Turn{Role: core.RoleAssistant, Text: ExtractReply(body), At: s.now().UTC()}
	if err := s.store.AppendTurns(ctx, userID, s.historyLimit, userTurn, reply); err != nil {
		return reply, fmt.Errorf("store chat turns: %w", err)
	}

	s.logger.InfoContext(ctx, "Chat reply received",
		applog.FieldUserID, userID,
		"context_turns", len(history),
		"reply_length", len(reply.Text))
	return reply, nil
}

// History returns the stored conversation, oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]core.Turn, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	turns, err := s.store.RecentTurns(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return turns, nil
}

func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	return s.store.ClearHistory(ctx, userID)
}
