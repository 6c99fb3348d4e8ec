package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"fintrack/internal/alerts"
	"fintrack/internal/core"
	"fintrack/internal/session"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", session.ErrNoToken
	}
	return f.token, nil
}

func (f *fakeTokens) ClearToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func mustRange(t *testing.T) core.DateRange {
	t.Helper()
	r, err := core.ParseDateRange("2024-02-01", "2024-02-29")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRequestHeadersAndQuery(t *testing.T) {
	var got *http.Request
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"totalIncome": 1000}`))
	})

	c := NewClient(srv.URL+"/api/", WithTokenSource(&fakeTokens{token: "secret"}), WithRequestIDFunc(func() string { return "req-1" }))
	if _, err := c.FinancialDashboard(context.Background(), mustRange(t)); err != nil {
		t.Fatal(err)
	}

	if got.URL.Path != "/api/financial-dashboard" {
		t.Fatalf("path = %s", got.URL.Path)
	}
	if got.URL.Query().Get("startDate") != "2024-02-01" || got.URL.Query().Get("endDate") != "2024-02-29" {
		t.Fatalf("query = %s", got.URL.RawQuery)
	}
	if got.Header.Get("Authorization") != "Bearer secret" {
		t.Fatalf("authorization = %q", got.Header.Get("Authorization"))
	}
	if got.Header.Get(RequestIDHeader) != "req-1" {
		t.Fatalf("request id = %q", got.Header.Get(RequestIDHeader))
	}
}

func TestNoTokenSendsAnonymousRequest(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected authorization header")
		}
		w.Write([]byte(`[]`))
	})
	c := NewClient(srv.URL, WithTokenSource(&fakeTokens{}))
	if _, err := c.FetchAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDashboardToleratesShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"flat", `{"totalIncome": 1000, "totalExpense": "250.5", "balance": "n/a"}`},
		{"wrapped", `{"data": {"totalIncome": 1000, "totalExpense": "250.5", "balance": null}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tc.body)
			})
			d, err := NewClient(srv.URL).FinancialDashboard(context.Background(), core.DateRange{})
			if err != nil {
				t.Fatal(err)
			}
			if v, ok := d.TotalIncome.Float(); !ok || v != 1000 {
				t.Fatalf("income = %v, %v", v, ok)
			}
			if v, ok := d.TotalExpense.Float(); !ok || v != 250.5 {
				t.Fatalf("expense = %v, %v", v, ok)
			}
			if d.Balance.Valid() || d.WalletCount.Valid() {
				t.Fatal("balance and wallet count must be absent")
			}
		})
	}
}

func TestCategoryExpenseReportShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"categoryName":"A","totalAmount":50},{"categoryName":"B","totalAmount":"200"}]`, 2},
		{"data array", `{"data":[{"categoryName":"A","totalAmount":50}]}`, 1},
		{"data categories", `{"data":{"categories":[{"name":"A","amount":1}]}}`, 1},
		{"categories", `{"categories":[{"categoryName":"A"},"junk"]}`, 1},
		{"unknown", `{"foo":"bar"}`, 0},
		{"empty body", ``, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tc.body)
			})
			got, err := NewClient(srv.URL).CategoryExpenseReport(context.Background(), mustRange(t))
			if err != nil {
				t.Fatal(err)
			}
			if got == nil || len(got) != tc.want {
				t.Fatalf("got %d categories, want %d", len(got), tc.want)
			}
		})
	}
}

func TestStatsOverview(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"totalTransactions":42}}`)
	})
	ov, err := NewClient(srv.URL).StatsOverview(context.Background(), mustRange(t))
	if err != nil || ov == nil {
		t.Fatalf("overview = %v, %v", ov, err)
	}
	if v, _ := ov.TotalTransactions.Float(); v != 42 {
		t.Fatalf("transactions = %v", v)
	}
}

func TestChatSendsQueryAndContext(t *testing.T) {
	var body ChatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"answer":"hi"}`)
	})

	resp, err := NewClient(srv.URL).Chat(context.Background(), ChatRequest{
		Query:   "hello",
		Context: []core.Turn{{Role: core.RoleUser, Text: "earlier"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m, _ := resp.(map[string]any); m["answer"] != "hi" {
		t.Fatalf("resp = %v", resp)
	}
	if body.Query != "hello" || len(body.Context) != 1 || body.Context[0].Text != "earlier" {
		t.Fatalf("body = %+v", body)
	}
}

func TestNonJSONBodiesAreTolerated(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		switch r.URL.Path {
		case "/alerts":
			io.WriteString(w, "not json")
		case "/chat":
			io.WriteString(w, "  hi \n")
		}
	})
	client := NewClient(srv.URL)

	t.Run("alerts degrade to an empty list", func(t *testing.T) {
		raw, err := client.FetchAlerts(context.Background())
		if err != nil {
			t.Fatalf("FetchAlerts() error = %v", err)
		}
		if raw != "not json" {
			t.Errorf("raw = %#v, want the body as a string", raw)
		}

		p := alerts.NewPoller(client)
		defer p.Close()
		if err := p.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		st := p.State()
		if st.Phase != alerts.PhaseSuccess || len(st.Alerts) != 0 || st.Alerts == nil {
			t.Errorf("state = %s with %v, want success with an empty list", st.Phase, st.Alerts)
		}
	})

	t.Run("chat plain text is the reply", func(t *testing.T) {
		resp, err := client.Chat(context.Background(), ChatRequest{Query: "hello"})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if resp != "hi" {
			t.Errorf("resp = %#v, want \"hi\"", resp)
		}
	})
}

func TestSuggestBudget(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantText   string
		wantAmount float64
	}{
		{"string", `"Nên chi tối đa 2 triệu"`, "Nên chi tối đa 2 triệu", 0},
		{"plain text", `Nên chi tối đa 2 triệu`, "Nên chi tối đa 2 triệu", 0},
		{"object", `{"data":{"suggestedAmount":2000000,"message":"ok"}}`, "ok", 2000000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("categoryId") != "c1" {
					t.Errorf("categoryId = %q", r.URL.Query().Get("categoryId"))
				}
				io.WriteString(w, tc.body)
			})
			s, err := NewClient(srv.URL).SuggestBudget(context.Background(), "c1")
			if err != nil {
				t.Fatal(err)
			}
			if s.Text != tc.wantText || amountOf(s.Amount) != tc.wantAmount || s.CategoryID != "c1" {
				t.Fatalf("suggestion = %+v", s)
			}
		})
	}
}

func TestErrorNormalisation(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message", 500, `{"message":"boom"}`, "boom"},
		{"error string", 400, `{"error":"bad range"}`, "bad range"},
		{"nested error", 429, `{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{"text", 502, `upstream down`, "upstream down"},
		{"empty", 503, ``, "Service Unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			_, err := NewClient(srv.URL).FetchAlerts(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T %v", err, err)
			}
			if apiErr.Status != tc.status || apiErr.Message != tc.want {
				t.Fatalf("got %d %q", apiErr.Status, apiErr.Message)
			}
			if !apiErr.Temporary() && tc.status >= 500 {
				t.Fatal("5xx should be temporary")
			}
		})
	}
}

func TestTransportErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).FetchAlerts(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 0 || !apiErr.Temporary() {
		t.Fatalf("got %#v", err)
	}
}

func TestUnauthorizedClearsTokenAndRedirectsOnce(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"token expired"}`)
	})

	var redirects atomic.Int32
	gate := NewAuthGate("/login", func(string) { redirects.Add(1) })
	tokens := &fakeTokens{token: "old"}
	c := NewClient(srv.URL, WithTokenSource(tokens), WithAuthGate(gate))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchAlerts(context.Background())
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
				t.Errorf("expected 401 APIError, got %v", err)
			}
		}()
	}
	wg.Wait()

	if redirects.Load() != 1 {
		t.Fatalf("redirects = %d, want 1", redirects.Load())
	}
	if tok, _ := tokens.Token(context.Background()); tok != "" {
		t.Fatal("token should be cleared")
	}
	if url, pending := gate.Pending(); !pending || url != "/login" {
		t.Fatalf("pending = %q %v", url, pending)
	}

	gate.Reset()
	c.FetchAlerts(context.Background())
	if redirects.Load() != 2 {
		t.Fatalf("redirects after reset = %d, want 2", redirects.Load())
	}
}

func amountOf(n core.Number) float64 {
	v, _ := n.Float()
	return v
}
