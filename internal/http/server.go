package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/api"
	"fintrack/internal/chat"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/session"
)

// AlertSource is the poller as seen by the panel.
type AlertSource interface {
	State() alerts.State
	Reload(ctx context.Context) error
}

// ReportRenderer renders and exports the deterministic reports.
type ReportRenderer interface {
	Render(ctx context.Context, kind string, r core.DateRange) (string, error)
	Forecast(ctx context.Context, month, period string) (string, error)
	Export(ctx context.Context, kind string, r core.DateRange) (string, error)
	Invalidate()
}

// ChatService relays chat messages and keeps per-user history.
type ChatService interface {
	Send(ctx context.Context, userID, text string) (core.Turn, error)
	History(ctx context.Context, userID string) ([]core.Turn, error)
	ClearHistory(ctx context.Context, userID string) error
}

// BudgetAdvisor asks the backend for budget suggestions.
type BudgetAdvisor interface {
	SuggestBudget(ctx context.Context, categoryID string) (core.BudgetSuggestion, error)
}

// SessionStore holds the signed-in user and their bearer token.
type SessionStore interface {
	CurrentUserID(ctx context.Context) (string, error)
	Login(ctx context.Context, token, userID string) error
	Logout(ctx context.Context) error
}

// Deps are the collaborators the panel routes to. Gate, Budget and Stream
// may be nil.
type Deps struct {
	Alerts   AlertSource
	Stream   http.Handler
	Reports  ReportRenderer
	Chat     ChatService
	Budget   BudgetAdvisor
	Session  SessionStore
	Gate     *api.AuthGate
	LoginURL string
	Logger   *applog.Logger
	Now      func() time.Time
}

type Server struct {
	http.Server
	deps   Deps
	logger *applog.Logger
	trace  *trace.Middleware
	now    func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		deps:   deps,
		logger: logger.WithComponent(applog.ComponentHTTP),
		trace:  trace.NewMiddleware(logger),
		now:    now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/alerts/reload", s.handleAlertsReload)
	if deps.Stream != nil {
		mux.Handle("GET /api/alerts/stream", deps.Stream)
	}

	mux.HandleFunc("GET /api/reports/forecast", s.handleForecast)
	mux.HandleFunc("POST /api/reports/export", s.handleExport)
	mux.HandleFunc("GET /api/reports/{kind}", s.handleReport)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/history", s.handleChatHistory)
	mux.HandleFunc("DELETE /api/chat/history", s.handleClearChatHistory)

	mux.HandleFunc("GET /api/budget/suggest", s.handleBudgetSuggest)

	mux.HandleFunc("POST /api/session", s.handleLogin)
	mux.HandleFunc("DELETE /api/session", s.handleLogout)
	mux.HandleFunc("GET /api/session/redirect", s.handleRedirect)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Middleware(withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds the headers every panel response carries.
func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.trace.GetMetrics()
	NewJSONResponse().Data(map[string]any{
		"status":          "ok",
		"requests":        m.TotalRequests,
		"failed_requests": m.FailedRequests,
		"avg_response_us": m.AverageResponseTime,
	}).Write(w)
}

// currentUser resolves the signed-in user or writes a 401.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.deps.Session.CurrentUserID(r.Context())
	if err != nil || userID == "" {
		UnauthorizedError("Bạn cần đăng nhập.", s.deps.LoginURL).Write(w)
		return "", false
	}
	return userID, true
}

// writeError maps domain and backend errors onto panel responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, chat.ErrEmptyMessage):
		BadRequestError(err.Error()).Write(w)
		return
	case errors.Is(err, services.ErrUnknownReport):
		NotFoundError(err.Error()).Write(w)
		return
	case errors.Is(err, services.ErrExportDisabled):
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Write(w)
		return
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, session.ErrNoUser),
		errors.Is(err, chat.ErrNoUser):
		UnauthorizedError("Bạn cần đăng nhập.", s.deps.LoginURL).Write(w)
		return
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.Status == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		retryable := apiErr.Temporary()
		applog.FromContext(ctx).WarnContext(ctx, "Backend call failed",
			applog.FieldStatusCode, apiErr.Status,
			applog.FieldError, apiErr.Message,
			"retryable", retryable)
		NewJSONResponse().
			Status(status).
			Data(ErrorBody{Status: status, Message: apiErr.Message, Retryable: retryable}).
			Write(w)
		return
	}

	applog.FromContext(ctx).LogError(ctx, "Request failed", err, applog.OpServe, nil)
	InternalServerError("").Write(w)
}
