package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

type memHistory struct {
	mu    sync.Mutex
	turns map[string][]core.Turn
	err   error
}

func newMemHistory() *memHistory { return &memHistory{turns: map[string][]core.Turn{}} }

func (m *memHistory) RecentTurns(_ context.Context, userID string, limit int) ([]core.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	all := m.turns[userID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]core.Turn{}, all...), nil
}

func (m *memHistory) AppendTurns(_ context.Context, userID string, keep int, turns ...core.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(m.turns[userID], turns...)
	if keep > 0 && len(all) > keep {
		all = all[len(all)-keep:]
	}
	m.turns[userID] = all
	return nil
}

func (m *memHistory) ClearHistory(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, userID)
	return nil
}

type fakeBackend struct {
	reqs []api.ChatRequest
	resp any
	err  error
}

func (f *fakeBackend) Chat(_ context.Context, req api.ChatRequest) (any, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestSendStoresTurnsAndSendsContext(t *testing.T) {
	store := newMemHistory()
	backend := &fakeBackend{resp: map[string]any{"data": map[string]any{"answer": "Xin chào"}}}
	svc := NewService(backend, store, WithContextTurns(2), WithClock(fixedClock()))
	ctx := context.Background()

	for i, msg := range []string{"một", "hai", "ba"} {
		reply, err := svc.Send(ctx, "u1", msg)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if reply.Role != core.RoleAssistant || reply.Text != "Xin chào" {
			t.Fatalf("reply = %+v", reply)
		}
	}

	if n := len(backend.reqs[0].Context); n != 0 {
		t.Fatalf("first request context = %d turns", n)
	}
	last := backend.reqs[2]
	if last.Query != "ba" || len(last.Context) != 2 {
		t.Fatalf("last request = %+v", last)
	}
	if last.Context[0].Text != "hai" || last.Context[1].Role != core.RoleAssistant {
		t.Fatalf("context = %+v", last.Context)
	}

	history, err := svc.History(ctx, "u1")
	if err != nil || len(history) != 6 {
		t.Fatalf("history = %d, %v", len(history), err)
	}
}

func TestSendTrimsHistory(t *testing.T) {
	store := newMemHistory()
	svc := NewService(&fakeBackend{resp: "ok"}, store, WithHistoryLimit(4))
	for _, msg := range []string{"a", "b", "c"} {
		if _, err := svc.Send(context.Background(), "u1", msg); err != nil {
			t.Fatal(err)
		}
	}
	history, _ := svc.History(context.Background(), "u1")
	if len(history) != 4 || history[0].Text != "b" {
		t.Fatalf("history = %+v", history)
	}
}

func TestSendBackendErrorAddsHint(t *testing.T) {
	store := newMemHistory()
	backend := &fakeBackend{err: &api.APIError{Status: 429, Message: "quota exceeded, retry in 9.2s"}}
	svc := NewService(backend, store)

	_, err := svc.Send(context.Background(), "u1", "hello")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "~10 giây") {
		t.Fatalf("message = %q", apiErr.Message)
	}
	if h, _ := svc.History(context.Background(), "u1"); len(h) != 0 {
		t.Fatalf("failed exchange must not be stored: %+v", h)
	}
}

func TestSendValidation(t *testing.T) {
	svc := NewService(&fakeBackend{}, newMemHistory())
	if _, err := svc.Send(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.Send(context.Background(), "", "hi"); !errors.Is(err, ErrNoUser) {
		t.Fatalf("got %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	store := newMemHistory()
	svc := NewService(&fakeBackend{resp: "ok"}, store)
	svc.Send(context.Background(), "u1", "hi")
	svc.Send(context.Background(), "u2", "hi")

	if err := svc.ClearHistory(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if h, _ := svc.History(context.Background(), "u1"); len(h) != 0 {
		t.Fatal("u1 history not cleared")
	}
	if h, _ := svc.History(context.Background(), "u2"); len(h) != 2 {
		t.Fatal("u2 history should be untouched")
	}
}
