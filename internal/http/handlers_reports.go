package http

import (
	"net/http"
	"strings"

	"fintrack/internal/services"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(r.PathValue("kind"))
	rng, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	text, err := s.deps.Reports.Render(r.Context(), kind, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(TextResponse{
		Kind:      kind,
		StartDate: rng.StartParam(),
		EndDate:   rng.EndParam(),
		Text:      text,
	}).Write(w)
}

// handleForecast never rejects bad month or period input; the report text
// explains the missing data instead.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text, err := s.deps.Reports.Forecast(r.Context(), q.Get("month"), q.Get("period"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(TextResponse{Kind: "forecast", Text: text}).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := strings.ToLower(strings.TrimSpace(q.Get("kind")))
	if kind == "" {
		kind = services.KindMonthly
	}
	rng, err := ParseRangeParams(q, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ref, err := s.deps.Reports.Export(r.Context(), kind, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(map[string]string{
		"kind":      kind,
		"startDate": rng.StartParam(),
		"endDate":   rng.EndParam(),
		"ref":       ref,
	}).Write(w)
}

func (s *Server) handleBudgetSuggest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Budget == nil {
		NotFoundError("budget suggestions are not available").Write(w)
		return
	}
	categoryID := sanitizeInput(r.URL.Query().Get("categoryId"))
	if categoryID == "" {
		BadRequestError("categoryId is required").Write(w)
		return
	}

	suggestion, err := s.deps.Budget.SuggestBudget(r.Context(), categoryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(suggestion).Write(w)
}
