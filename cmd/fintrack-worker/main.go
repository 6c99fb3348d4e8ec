package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/amqp"
	"fintrack/internal/api"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	if !cfg.AlertsPollEnabled {
		logger.Warn("ALERTS_POLL_ENABLED is false, the worker will publish nothing")
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	sess := session.NewManager(repo, logger)

	// Headless: a 401 is logged once until the token is replaced.
	gate := api.NewAuthGate(cfg.LoginURL, func(loginURL string) {
		logger.WithComponent(applog.ComponentAuth).Warn("Backend rejected the session, a new token is required",
			applog.FieldOperation, applog.OpRedirect, "login_url", loginURL)
	})
	client := cli.NewAPIClient(cfg, sess, gate, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}

	poller := alerts.NewPoller(client, alerts.WithLogger(logger.WithComponent(applog.ComponentAlerts)))
	alertWorker := worker.NewAlertWorker(poller, amqpClient, sess, worker.AlertWorkerConfig{
		Enabled:  cfg.AlertsPollEnabled,
		Interval: cfg.AlertsPollInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		alertWorker.Stop()
		poller.Close()
		published, failed := alertWorker.Stats()
		logger.Info("Alert worker summary", "published", published, "failed", failed)
		_ = amqpClient.Close()
		_ = repo.Close()
	})

	if err := alertWorker.Start(ctx); err != nil {
		logger.Error("Failed to start alert worker", applog.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
