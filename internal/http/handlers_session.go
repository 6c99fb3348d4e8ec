package http

import (
	"net/http"

	applog "fintrack/internal/log"
	"fintrack/internal/session"
)

// handleLogin stores the bearer token and current user, re-arming the
// login redirect. userId defaults to the token's subject claim.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	token, userID := p.Get("token"), p.Get("userId")
	if token != "" && userID == "" {
		userID, _ = session.SubjectFromToken(token)
	}
	if token == "" || userID == "" {
		BadRequestError("token and userId are required").Write(w)
		return
	}

	if err := s.deps.Session.Login(r.Context(), token, userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Gate != nil {
		s.deps.Gate.Reset()
	}
	s.deps.Reports.Invalidate()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Session started", applog.FieldUserID, userID)
	NewJSONResponse().Data(map[string]string{"userId": userID}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deps.Reports.Invalidate()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleRedirect tells the client whether a 401 asked for a login.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Pending  bool   `json:"pending"`
		LoginURL string `json:"loginUrl,omitempty"`
	}{}
	if s.deps.Gate != nil {
		if url, pending := s.deps.Gate.Pending(); pending {
			resp.Pending = true
			resp.LoginURL = url
		}
	}
	NewJSONResponse().Data(resp).Write(w)
}
