package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"fintrack/internal/alerts"
	"fintrack/internal/core"
)

const (
	pathAlerts         = "/alerts"
	pathDashboard      = "/financial-dashboard"
	pathCategoryReport = "/category/expense-report"
	pathStatsOverview  = "/stats-overview"
	pathChat           = "/chat"
	pathSuggestBudget  = "/suggest-budget"
	queryStartDate     = "startDate"
	queryEndDate       = "endDate"
	queryCategoryID    = "categoryId"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query   string      `json:"query"`
	Context []core.Turn `json:"context"`
}

func rangeQuery(r core.DateRange) url.Values {
	q := url.Values{}
	if !r.IsZero() {
		q.Set(queryStartDate, r.StartParam())
		q.Set(queryEndDate, r.EndParam())
	}
	return q
}

func decodeAny(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("decode response: %v", err), Body: string(raw), Err: err}
	}
	return v, nil
}

// unwrapData returns the value under "data" when body is an object holding
// one, else body itself.
func unwrapData(v any) any {
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["data"]; ok && inner != nil {
			return inner
		}
	}
	return v
}

// FetchAlerts returns the decoded alerts payload, or the body as a string
// when it is not JSON. Its shape is left to the alerts normalizer.
func (c *Client) FetchAlerts(ctx context.Context) (any, error) {
	raw, err := c.get(ctx, pathAlerts, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return alerts.NormalizeJSON(raw).Raw, nil
}

// FinancialDashboard returns totals for the range. Fields the backend omits
// or sends as non-numbers are absent.
func (c *Client) FinancialDashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error) {
	raw, err := c.get(ctx, pathDashboard, rangeQuery(r))
	if err != nil {
		return core.Dashboard{}, err
	}
	v, err := decodeAny(raw)
	if err != nil {
		return core.Dashboard{}, err
	}
	m, _ := unwrapData(v).(map[string]any)
	return core.Dashboard{
		TotalIncome:          core.NumberFrom(m["totalIncome"]),
		TotalExpense:         core.NumberFrom(m["totalExpense"]),
		Balance:              core.NumberFrom(m["balance"]),
		IncomeChangePercent:  core.NumberFrom(m["incomeChangePercent"]),
		ExpenseChangePercent: core.NumberFrom(m["expenseChangePercent"]),
		TotalWalletBalance:   core.NumberFrom(m["totalWalletBalance"]),
		WalletCount:          core.NumberFrom(m["walletCount"]),
	}, nil
}

// CategoryExpenseReport returns per-category expense totals. It accepts a
// bare array, or an array under data, data.categories or categories;
// anything else yields an empty list.
func (c *Client) CategoryExpenseReport(ctx context.Context, r core.DateRange) ([]core.CategoryTotal, error) {
	raw, err := c.get(ctx, pathCategoryReport, rangeQuery(r))
	if err != nil {
		return nil, err
	}
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}

	items := categoryItems(v)
	out := make([]core.CategoryTotal, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, core.CategoryTotal{
			CategoryName: firstString(m, "categoryName", "name"),
			CategoryIcon: firstString(m, "categoryIcon", "icon"),
			TotalAmount:  firstNumber(m, "totalAmount", "amount", "total"),
		})
	}
	return out, nil
}

func categoryItems(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	switch data := m["data"].(type) {
	case []any:
		return data
	case map[string]any:
		if list, ok := data["categories"].([]any); ok {
			return list
		}
	}
	if list, ok := m["categories"].([]any); ok {
		return list
	}
	return nil
}

// StatsOverview returns transaction statistics. A nil Overview with a nil
// error means the backend sent nothing usable.
func (c *Client) StatsOverview(ctx context.Context, r core.DateRange) (*core.Overview, error) {
	raw, err := c.get(ctx, pathStatsOverview, rangeQuery(r))
	if err != nil {
		return nil, err
	}
	v, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	m, ok := unwrapData(v).(map[string]any)
	if !ok {
		return nil, nil
	}
	return &core.Overview{TotalTransactions: firstNumber(m, "totalTransactions", "transactionCount")}, nil
}

// Chat sends a message with its conversation context and returns the raw
// reply envelope.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (any, error) {
	if req.Context == nil {
		req.Context = []core.Turn{}
	}
	raw, err := c.post(ctx, pathChat, req)
	if err != nil {
		return nil, err
	}
	v, err := decodeAny(raw)
	if err != nil {
		// Plain text bodies are the reply itself.
		return strings.TrimSpace(string(raw)), nil
	}
	return v, nil
}

// SuggestBudget asks the backend for a budget suggestion for a category.
// The backend answers with either a bare string or an object.
func (c *Client) SuggestBudget(ctx context.Context, categoryID string) (core.BudgetSuggestion, error) {
	q := url.Values{}
	q.Set(queryCategoryID, categoryID)
	raw, err := c.get(ctx, pathSuggestBudget, q)
	if err != nil {
		return core.BudgetSuggestion{}, err
	}

	v, err := decodeAny(raw)
	if err != nil {
		// Plain text bodies are valid suggestions.
		return core.BudgetSuggestion{CategoryID: categoryID, Text: strings.TrimSpace(string(raw))}, nil
	}

	s := core.BudgetSuggestion{CategoryID: categoryID, Raw: v}
	switch x := unwrapData(v).(type) {
	case string:
		s.Text = strings.TrimSpace(x)
	case float64:
		s.Amount = core.Num(x)
	case map[string]any:
		s.Amount = firstNumber(x, "amount", "suggestedAmount", "suggestedBudget", "budget")
		s.Text = firstString(x, "message", "suggestion", "text", "reason")
	}
	return s, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) core.Number {
	for _, k := range keys {
		if n := core.NumberFrom(m[k]); n.Valid() {
			return n
		}
	}
	return core.Number{}
}
