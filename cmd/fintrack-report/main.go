// Command fintrack-report prints one deterministic report to stdout and
// optionally appends it to the configured spreadsheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/session"
	gsheet "fintrack/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()

	kind := flag.String("kind", services.KindMonthly, "report kind: monthly, analysis, alerts or forecast")
	start := flag.String("start", "", "range start (YYYY-MM-DD), defaults to the current month")
	end := flag.String("end", "", "range end (YYYY-MM-DD)")
	month := flag.String("month", "", "forecast base month (YYYY-MM), defaults to the current month")
	period := flag.String("period", "month", "forecast period: week, month, quarter or year")
	export := flag.Bool("export", false, "append the report to the configured spreadsheet")
	flag.Parse()

	// Reports go to stdout; keep logs on stderr.
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: applog.ComponentApp,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client := cli.NewAPIClient(cfg, session.NewManager(repo, logger), nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.APITimeout)
	defer cancel()

	// Render and Export share one fetch.
	opts := []services.ReportOption{
		services.WithReportLogger(logger),
		services.WithInputCache(cache.NewLRUCache[core.ReportInputs](4, time.Minute)),
	}
	k := strings.ToLower(strings.TrimSpace(*kind))
	if k == services.KindAlerts {
		poller := alerts.NewPoller(client, alerts.WithLogger(logger.WithComponent(applog.ComponentAlerts)))
		if err := poller.Reload(ctx); err != nil {
			logger.Warn("Alert fetch failed, using the fallback alerts report", applog.FieldError, err.Error())
		}
		defer poller.Close()
		opts = append(opts, services.WithLiveAlerts(poller))
	}
	if *export {
		if !cfg.SheetsEnabled() {
			fail(logger, "export requested but GOOGLE_SPREADSHEET_ID is not set", nil)
		}
		exporter, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheetName, logger)
		if err != nil {
			fail(logger, "Failed to initialize Google Sheets client", err)
		}
		opts = append(opts, services.WithExporter(exporter))
	}
	reports := services.NewReportService(client, opts...)

	if k == "forecast" {
		m := *month
		if m == "" {
			m = time.Now().Format("2006-01")
		}
		text, err := reports.Forecast(ctx, m, *period)
		if err != nil {
			fail(logger, "Forecast failed", err)
		}
		fmt.Println(text)
		return
	}

	rng := core.CurrentMonth(time.Now())
	if *start != "" || *end != "" {
		var err error
		if rng, err = core.ParseDateRange(*start, *end); err != nil {
			fail(logger, "Invalid date range", err)
		}
	}

	text, err := reports.Render(ctx, k, rng)
	if err != nil {
		fail(logger, "Report failed", err)
	}
	fmt.Println(text)

	if *export {
		ref, err := reports.Export(ctx, k, rng)
		if err != nil {
			fail(logger, "Report export failed", err)
		}
		logger.Info("Report exported", applog.FieldReport, k, applog.FieldSheetsRef, ref)
	}
}

func fail(logger *applog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, applog.FieldError, err.Error())
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
