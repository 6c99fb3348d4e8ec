package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	reply, err := s.deps.Chat.Send(r.Context(), userID, p.Get("message"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(map[string]core.Turn{"reply": reply}).Write(w)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	turns, err := s.deps.Chat.History(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []core.Turn{}
	}
	NewJSONResponse().Data(map[string][]core.Turn{"turns": turns}).Write(w)
}

func (s *Server) handleClearChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.deps.Chat.ClearHistory(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
