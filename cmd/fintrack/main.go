package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/amqp"
	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/chat"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/session"
	"fintrack/internal/stream"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	logger.Info("Starting fintrack")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	sess := session.NewManager(repo, logger)

	gate := api.NewAuthGate(cfg.LoginURL, func(loginURL string) {
		logger.WithComponent(applog.ComponentAuth).Warn("Backend rejected the session, login required",
			applog.FieldOperation, applog.OpRedirect, "login_url", loginURL)
	})
	client := cli.NewAPIClient(cfg, sess, gate, logger)

	poller := alerts.NewPoller(client, alerts.WithLogger(logger.WithComponent(applog.ComponentAlerts)))

	cacheManager := cache.NewManager(logger)
	reportOpts := []services.ReportOption{
		services.WithLiveAlerts(poller),
		services.WithReportLogger(logger),
	}
	if cfg.ReportCacheSize > 0 && cfg.ReportCacheTTL > 0 {
		inputs := cache.NewLRUCache[core.ReportInputs](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		cacheManager.Register(inputs)
		reportOpts = append(reportOpts, services.WithInputCache(inputs))
	}
	if cfg.SheetsEnabled() {
		exporter, err := gsheet.NewFromEnv(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleReportSheetName, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		reportOpts = append(reportOpts, services.WithExporter(exporter))
		logger.Info("Report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	reports := services.NewReportService(client, reportOpts...)

	// New alerts usually mean new transactions; drop cached report inputs.
	poller.Subscribe(func(alerts.State) { reports.Invalidate() })

	chatService := chat.NewService(client, repo,
		chat.WithContextTurns(cfg.ChatContextTurns),
		chat.WithHistoryLimit(cfg.ChatHistoryLimit),
		chat.WithLogger(logger))

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
	}

	var hub *stream.Hub
	if cfg.StreamEnabled() {
		streamCfg := stream.DefaultConfig()
		streamCfg.MaxClients = cfg.AlertsStreamMaxClients
		hub = stream.NewHub(poller, streamCfg, logger)
		// With a broker, changes reach the hub through the relay below.
		if amqpClient == nil {
			poller.Subscribe(hub.PublishAlerts)
		}
	}

	deps := apphttp.Deps{
		Alerts:   poller,
		Reports:  reports,
		Chat:     chatService,
		Budget:   client,
		Session:  sess,
		Gate:     gate,
		LoginURL: cfg.LoginURL,
		Logger:   logger,
	}
	if hub != nil {
		deps.Stream = hub
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.APITimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	var alertWorker *worker.AlertWorker
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if alertWorker != nil {
			alertWorker.Stop()
		}
		poller.Close()
		cacheManager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close SQLite repository", applog.FieldError, err.Error())
		}
	})

	cacheManager.StartCleanup(time.Minute)
	if hub != nil {
		go hub.Run(ctx)
		if amqpClient != nil {
			go worker.Relay(ctx, amqpClient, hub.HandleAlertsChanged, 5*time.Second, logger)
		}
	}

	if amqpClient != nil {
		alertWorker = worker.NewAlertWorker(poller, amqpClient, sess, worker.AlertWorkerConfig{
			Enabled:  cfg.AlertsPollEnabled,
			Interval: cfg.AlertsPollInterval,
		}, logger)
		if err := alertWorker.Start(ctx); err != nil {
			logger.Error("Failed to start alert worker", applog.FieldError, err.Error())
			os.Exit(1)
		}
	} else if err := poller.Start(ctx, cfg.AlertsPollEnabled, cfg.AlertsPollInterval); err != nil {
		logger.Error("Failed to start alert poller", applog.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("Starting panel server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"alerts_polling", cfg.AlertsPollEnabled,
		"amqp", cfg.AMQPEnabled(),
		"alert_stream", cfg.StreamEnabled(),
		"sheets_export", cfg.SheetsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
