// Package services composes the backend client, caches and formatters into
// the operations the panel and CLI expose.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/alerts"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/sheets"
)

// Report kinds accepted by Render and Export.
const (
	KindMonthly  = "monthly"
	KindAnalysis = "analysis"
	KindAlerts   = "alerts"
)

var (
	ErrUnknownReport  = errors.New("unknown report kind")
	ErrExportDisabled = errors.New("report export is not configured")
)

// ReportBackend is the subset of the API client reports are built from.
type ReportBackend interface {
	FinancialDashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error)
	CategoryExpenseReport(ctx context.Context, r core.DateRange) ([]core.CategoryTotal, error)
	StatsOverview(ctx context.Context, r core.DateRange) (*core.Overview, error)
}

// LiveAlertSource returns the alerts currently known to the poller.
type LiveAlertSource interface {
	State() alerts.State
}

type ReportService struct {
	backend  ReportBackend
	cache    cache.Cache[core.ReportInputs]
	exporter sheets.ReportExporter
	live     LiveAlertSource
	flight   singleflight.Group
	now      func() time.Time
	logger   *applog.Logger
}

type ReportOption func(*ReportService)

// WithInputCache caches fetched inputs per date range.
func WithInputCache(c cache.Cache[core.ReportInputs]) ReportOption {
	return func(s *ReportService) { s.cache = c }
}

func WithExporter(e sheets.ReportExporter) ReportOption {
	return func(s *ReportService) { s.exporter = e }
}

// WithLiveAlerts makes the alerts report list backend alerts when there are any.
func WithLiveAlerts(src LiveAlertSource) ReportOption {
	return func(s *ReportService) { s.live = src }
}

func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func WithReportLogger(l *applog.Logger) ReportOption {
	return func(s *ReportService) { s.logger = l }
}

func NewReportService(backend ReportBackend, opts ...ReportOption) *ReportService {
	s := &ReportService{
		backend: backend,
		now:     time.Now,
		logger:  applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentReport)
	return s
}

// Inputs fetches dashboard, categories and overview for r concurrently.
// Concurrent calls for the same range share one fetch, which keeps running
// when the caller that started it is cancelled. The overview is optional:
// its failure is logged and leaves Overview nil.
func (s *ReportService) Inputs(ctx context.Context, r core.DateRange) (core.ReportInputs, error) {
	key := r.Key()
	if s.cache != nil {
		if in, ok := s.cache.Get(key); ok {
			return in, nil
		}
	}

	// The shared load is not bound to any one caller's cancellation. The
	// backend client's timeout still applies.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		in, err := s.load(loadCtx, r)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, in)
		}
		return in, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.ReportInputs{}, res.Err
		}
		return res.Val.(core.ReportInputs), nil
	case <-ctx.Done():
		return core.ReportInputs{}, ctx.Err()
	}
}

func (s *ReportService) load(ctx context.Context, r core.DateRange) (core.ReportInputs, error) {
	in := core.ReportInputs{Range: r}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, err := s.backend.FinancialDashboard(gctx, r)
		if err != nil {
			return fmt.Errorf("financial dashboard: %w", err)
		}
		in.Dashboard = d
		return nil
	})
	g.Go(func() error {
		cats, err := s.backend.CategoryExpenseReport(gctx, r)
		if err != nil {
			return fmt.Errorf("category expense report: %w", err)
		}
		in.Categories = cats
		return nil
	})
	g.Go(func() error {
		ov, err := s.backend.StatsOverview(gctx, r)
		if err != nil {
			s.logger.LogError(ctx, "Stats overview unavailable", err, applog.OpFetch,
				applog.NewFields().WithRange(r.StartParam(), r.EndParam()))
			return nil
		}
		in.Overview = ov
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.ReportInputs{}, err
	}
	s.logger.DebugContext(ctx, "Report inputs loaded",
		applog.FieldStartDate, r.StartParam(),
		applog.FieldEndDate, r.EndParam(),
		"categories", len(in.Categories))
	return in, nil
}

// Invalidate drops cached inputs, forcing the next report to refetch.
func (s *ReportService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Render builds the report of the given kind for r.
func (s *ReportService) Render(ctx context.Context, kind string, r core.DateRange) (string, error) {
	render, err := s.renderer(kind)
	if err != nil {
		return "", err
	}
	in, err := s.Inputs(ctx, r)
	if err != nil {
		return "", err
	}
	return render(in), nil
}

func (s *ReportService) renderer(kind string) (func(core.ReportInputs) string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindMonthly:
		return report.Monthly, nil
	case KindAnalysis:
		return report.Analysis, nil
	case KindAlerts:
		return s.alertsReport, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReport, kind)
}

func (s *ReportService) alertsReport(in core.ReportInputs) string {
	if s.live != nil {
		if st := s.live.State(); len(st.Alerts) > 0 {
			return report.LiveAlerts(in.Range, st.Alerts)
		}
	}
	return report.AlertsFallback(in)
}

func (s *ReportService) Monthly(ctx context.Context, r core.DateRange) (string, error) {
	return s.Render(ctx, KindMonthly, r)
}

func (s *ReportService) Analysis(ctx context.Context, r core.DateRange) (string, error) {
	return s.Render(ctx, KindAnalysis, r)
}

func (s *ReportService) Alerts(ctx context.Context, r core.DateRange) (string, error) {
	return s.Render(ctx, KindAlerts, r)
}

// Forecast projects spending from the total expense of month (YYYY-MM).
// Unparsable months and unknown periods yield the insufficient data message
// without a backend call; only fetch failures are returned as errors.
func (s *ReportService) Forecast(ctx context.Context, month, period string) (string, error) {
	base, err := time.Parse(report.MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return report.MsgInsufficientData, nil
	}
	p, ok := report.ParsePeriod(period)
	if !ok {
		return report.MsgInsufficientData, nil
	}
	in, err := s.Inputs(ctx, core.MonthRange(base.Year(), base.Month()))
	if err != nil {
		return "", err
	}
	return report.Forecast(month, in.Dashboard.TotalExpense, p), nil
}

// Export renders the report and appends it to the configured exporter,
// returning the exporter's row reference.
func (s *ReportService) Export(ctx context.Context, kind string, r core.DateRange) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	render, err := s.renderer(kind)
	if err != nil {
		return "", err
	}
	in, err := s.Inputs(ctx, r)
	if err != nil {
		return "", err
	}

	row := sheets.ReportRow{
		Kind:          strings.ToLower(strings.TrimSpace(kind)),
		Range:         r,
		Income:        in.Dashboard.TotalIncome,
		Expense:       in.Dashboard.TotalExpense,
		Balance:       in.Dashboard.Balance,
		TopCategories: report.TopCategoryNames(in.Categories, report.MaxTopCategories),
		Text:          render(in),
		ExportedAt:    s.now().UTC(),
	}
	ref, err := s.exporter.AppendReport(ctx, row)
	if err != nil {
		s.logger.LogError(ctx, "Report export failed", err, applog.OpExport,
			applog.NewFields().WithRange(r.StartParam(), r.EndParam()))
		return "", fmt.Errorf("export report: %w", err)
	}
	s.logger.InfoContext(ctx, "Report exported",
		applog.FieldReport, row.Kind,
		applog.FieldSheetsRef, ref)
	return ref, nil
}
