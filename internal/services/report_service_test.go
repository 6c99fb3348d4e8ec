package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/sheets/memory"
)

type fakeBackend struct {
	dashboardCalls atomic.Int32
	release        chan struct{}
	dashboard      core.Dashboard
	categories     []core.CategoryTotal
	dashboardErr   error
	overviewErr    error

	mu     sync.Mutex
	ranges []core.DateRange
}

func (f *fakeBackend) FinancialDashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error) {
	f.dashboardCalls.Add(1)
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return core.Dashboard{}, err
	}
	return f.dashboard, f.dashboardErr
}

func (f *fakeBackend) CategoryExpenseReport(context.Context, core.DateRange) ([]core.CategoryTotal, error) {
	return f.categories, nil
}

func (f *fakeBackend) StatsOverview(context.Context, core.DateRange) (*core.Overview, error) {
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	return &core.Overview{TotalTransactions: core.Num(12)}, nil
}

func february(t *testing.T) core.DateRange {
	t.Helper()
	r, err := core.ParseDateRange("2024-02-01", "2024-02-29")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestInputsLoadsConcurrentlyAndCaches(t *testing.T) {
	backend := &fakeBackend{
		dashboard:   core.Dashboard{TotalIncome: core.Num(1000)},
		categories:  []core.CategoryTotal{{CategoryName: "A", TotalAmount: core.Num(10)}},
		overviewErr: errors.New("overview down"),
	}
	svc := NewReportService(backend, WithInputCache(cache.NewLRUCache[core.ReportInputs](8, time.Minute)))
	r := february(t)

	in, err := svc.Inputs(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Categories) != 1 || in.Overview != nil || in.Range.Key() != r.Key() {
		t.Fatalf("inputs = %+v", in)
	}
	if _, err := svc.Inputs(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if n := backend.dashboardCalls.Load(); n != 1 {
		t.Fatalf("dashboard fetched %d times, want 1", n)
	}

	svc.Invalidate()
	svc.Inputs(context.Background(), r)
	if n := backend.dashboardCalls.Load(); n != 2 {
		t.Fatalf("dashboard fetched %d times after invalidate, want 2", n)
	}
}

func TestInputsCollapsesConcurrentLoads(t *testing.T) {
	backend := &fakeBackend{release: make(chan struct{})}
	svc := NewReportService(backend)
	r := february(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Inputs(context.Background(), r); err != nil {
				t.Errorf("inputs: %v", err)
			}
		}()
	}
	for backend.dashboardCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	if n := backend.dashboardCalls.Load(); n != 1 {
		t.Fatalf("dashboard fetched %d times, want 1", n)
	}
}

func TestInputsSurvivesFirstCallerCancel(t *testing.T) {
	backend := &fakeBackend{
		dashboard: core.Dashboard{TotalIncome: core.Num(1000)},
		release:   make(chan struct{}),
	}
	svc := NewReportService(backend, WithInputCache(cache.NewLRUCache[core.ReportInputs](8, time.Minute)))
	r := february(t)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Inputs(ctx, r)
		firstErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for backend.dashboardCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("load never started")
		}
		time.Sleep(time.Millisecond)
	}

	type result struct {
		in  core.ReportInputs
		err error
	}
	second := make(chan result, 1)
	go func() {
		in, err := svc.Inputs(context.Background(), r)
		second <- result{in, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller error = %v, want context.Canceled", err)
	}

	close(backend.release)
	res := <-second
	if res.err != nil {
		t.Fatalf("second caller error = %v", res.err)
	}
	if v, _ := res.in.Dashboard.TotalIncome.Float(); v != 1000 {
		t.Errorf("income = %v, want 1000", v)
	}
	if n := backend.dashboardCalls.Load(); n != 1 {
		t.Errorf("dashboard calls = %d, want 1", n)
	}
}

func TestRenderErrors(t *testing.T) {
	backend := &fakeBackend{dashboardErr: errors.New("backend down")}
	svc := NewReportService(backend)

	if _, err := svc.Monthly(context.Background(), february(t)); err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, err := svc.Render(context.Background(), "weekly", february(t)); !errors.Is(err, ErrUnknownReport) {
		t.Fatalf("expected ErrUnknownReport, got %v", err)
	}
}

func TestRenderKinds(t *testing.T) {
	backend := &fakeBackend{
		dashboard:  core.Dashboard{TotalIncome: core.Num(1000), TotalExpense: core.Num(400), Balance: core.Num(-1)},
		categories: []core.CategoryTotal{{CategoryName: "Ăn uống", TotalAmount: core.Num(200)}},
	}
	svc := NewReportService(backend)
	ctx := context.Background()

	monthly, err := svc.Monthly(ctx, february(t))
	if err != nil || !strings.Contains(monthly, "1. Ăn uống: 200 ₫") || !strings.Contains(monthly, "🧾 Số giao dịch: 12") {
		t.Fatalf("monthly = %q, %v", monthly, err)
	}
	analysis, err := svc.Analysis(ctx, february(t))
	if err != nil || !strings.Contains(analysis, "chiếm 50.00% tổng chi tiêu") {
		t.Fatalf("analysis = %q, %v", analysis, err)
	}
	fallback, err := svc.Alerts(ctx, february(t))
	if err != nil || !strings.Contains(fallback, "số dư âm") {
		t.Fatalf("alerts = %q, %v", fallback, err)
	}
}

type staticAlerts struct{ list []alerts.Alert }

func (s staticAlerts) State() alerts.State { return alerts.State{Alerts: s.list} }

func TestAlertsReportPrefersLiveAlerts(t *testing.T) {
	backend := &fakeBackend{dashboard: core.Dashboard{Balance: core.Num(-1)}}
	live := staticAlerts{list: []alerts.Alert{alerts.New(map[string]any{"title": "Overspend", "severity": "high"})}}
	svc := NewReportService(backend, WithLiveAlerts(live))

	out, err := svc.Alerts(context.Background(), february(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[HIGH] Overspend") || strings.Contains(out, "số dư âm") {
		t.Fatalf("out = %q", out)
	}

	svc = NewReportService(backend, WithLiveAlerts(staticAlerts{}))
	out, _ = svc.Alerts(context.Background(), february(t))
	if !strings.Contains(out, "số dư âm") {
		t.Fatalf("empty live list should fall back: %q", out)
	}
}

func TestForecast(t *testing.T) {
	backend := &fakeBackend{dashboard: core.Dashboard{TotalExpense: core.Num(2900)}}
	svc := NewReportService(backend)
	ctx := context.Background()

	out, err := svc.Forecast(ctx, "2024-02", "month")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3.100 ₫") {
		t.Fatalf("forecast = %q", out)
	}
	if got := backend.ranges[0]; got.StartParam() != "2024-02-01" || got.EndParam() != "2024-02-29" {
		t.Fatalf("fetched range %s", got.Key())
	}

	for _, tc := range []struct{ month, period string }{
		{"2024-13", "month"},
		{"", "month"},
		{"2024-02", "decade"},
	} {
		out, err := svc.Forecast(ctx, tc.month, tc.period)
		if err != nil || out != report.MsgInsufficientData {
			t.Fatalf("Forecast(%q, %q) = %q, %v", tc.month, tc.period, out, err)
		}
	}
	if n := backend.dashboardCalls.Load(); n != 1 {
		t.Fatalf("invalid input must not reach the backend, calls = %d", n)
	}
}

func TestExport(t *testing.T) {
	backend := &fakeBackend{
		dashboard: core.Dashboard{TotalIncome: core.Num(1000), TotalExpense: core.Num(300)},
		categories: []core.CategoryTotal{
			{CategoryName: "Di chuyển", TotalAmount: core.Num(50)},
			{CategoryName: "Ăn uống", TotalAmount: core.Num(200)},
		},
	}
	ctx := context.Background()

	if _, err := NewReportService(backend).Export(ctx, KindMonthly, february(t)); !errors.Is(err, ErrExportDisabled) {
		t.Fatalf("expected ErrExportDisabled, got %v", err)
	}

	store := memory.New(0)
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := NewReportService(backend, WithExporter(store), WithReportClock(func() time.Time { return at }))

	ref, err := svc.Export(ctx, " Monthly ", february(t))
	if err != nil || ref != "mem:1" {
		t.Fatalf("ref = %q, %v", ref, err)
	}
	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row.Kind != KindMonthly || !row.ExportedAt.Equal(at) || !row.Income.Valid() || row.Balance.Valid() {
		t.Fatalf("row = %+v", row)
	}
	if v, _ := row.Income.Float(); v != 1000 {
		t.Fatalf("income = %v", v)
	}
	if got := strings.Join(row.TopCategories, "|"); got != "Ăn uống|Di chuyển" {
		t.Fatalf("top categories = %q", got)
	}
	if !strings.Contains(row.Text, "💰 Tổng thu nhập: 1.000 ₫") {
		t.Fatalf("row text = %q", row.Text)
	}

	if _, err := svc.Export(ctx, "bogus", february(t)); !errors.Is(err, ErrUnknownReport) {
		t.Fatalf("expected ErrUnknownReport, got %v", err)
	}
}
