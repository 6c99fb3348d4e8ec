// Package worker runs the headless alert poller and turns content changes
// into AlertsChanged events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/alerts"
	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
)

// Publisher delivers change events.
type Publisher interface {
	PublishAlertsChanged(ctx context.Context, msg *amqp.AlertsChangedMessage) error
}

// UserSource names the user whose alerts are polled. It may fail when no
// one is signed in; events are then published without a user id.
type UserSource interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Poller is the part of alerts.Poller the worker drives.
type Poller interface {
	Start(ctx context.Context, enabled bool, interval time.Duration) error
	Stop()
	Subscribe(fn func(alerts.State))
}

type AlertWorkerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// AlertWorker publishes an AlertsChanged message for every changed poll.
type AlertWorker struct {
	poller    Poller
	publisher Publisher
	users     UserSource
	config    AlertWorkerConfig
	logger    *applog.Logger

	mu         sync.Mutex
	running    bool
	subscribed bool
	ctx        context.Context
	published  int
	failed     int
}

func NewAlertWorker(poller Poller, publisher Publisher, users UserSource, config AlertWorkerConfig, logger *applog.Logger) *AlertWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &AlertWorker{
		poller:    poller,
		publisher: publisher,
		users:     users,
		config:    config,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// Start subscribes to poller changes and starts polling. Returns an error if
// already running.
func (w *AlertWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("alert worker is already running")
	}
	w.running = true
	w.ctx = ctx
	if !w.subscribed {
		w.subscribed = true
		w.poller.Subscribe(w.onChange)
	}
	w.mu.Unlock()

	if err := w.poller.Start(ctx, w.config.Enabled, w.config.Interval); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("start poller: %w", err)
	}

	w.logger.InfoContext(ctx, "Alert worker started",
		"enabled", w.config.Enabled,
		applog.FieldInterval, w.config.Interval.String())
	return nil
}

// Stop halts polling. Changes from fetches already in flight are still
// published.
func (w *AlertWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.poller.Stop()
	w.logger.Info("Alert worker stopped")
}

func (w *AlertWorker) onChange(st alerts.State) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	// Publishing outlives a cancelled run context so the last change is not lost.
	if err := w.HandleChange(context.WithoutCancel(ctx), st); err != nil {
		w.logger.LogError(ctx, "Failed to publish alerts change", err, applog.OpPublish, nil)
	}
}

// HandleChange publishes the snapshot of a changed state.
func (w *AlertWorker) HandleChange(ctx context.Context, st alerts.State) error {
	userID := ""
	if w.users != nil {
		if id, err := w.users.CurrentUserID(ctx); err == nil {
			userID = id
		}
	}

	snap := st.Snapshot
	titles := make([]string, 0, len(snap.List))
	for _, a := range snap.List {
		titles = append(titles, a.Title())
	}
	msg := amqp.NewAlertsChangedMessage(userID, len(snap.List), snap.ContentHash, snap.FetchedAt, titles)
	msg.Seq = snap.Seq

	err := w.publisher.PublishAlertsChanged(ctx, msg)

	w.mu.Lock()
	if err != nil {
		w.failed++
	} else {
		w.published++
	}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("publish alerts changed: %w", err)
	}
	w.logger.InfoContext(ctx, "Alerts change published",
		applog.NewFields().
			WithUser(userID).
			WithSnapshot(snap.Seq, len(snap.List), snap.ContentHash, true).
			ToSlice()...)
	return nil
}

// Stats returns how many events were published and how many failed.
func (w *AlertWorker) Stats() (published, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.published, w.failed
}
