package worker

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
)

// Consumer delivers AlertsChanged messages from the broker.
type Consumer interface {
	ConsumeAlertsChanged(ctx context.Context, handler func(*amqp.AlertsChangedMessage) error) error
}

// Relay feeds broker messages to handler until ctx is done. An interrupted
// consumer is restarted after retry.
func Relay(ctx context.Context, consumer Consumer, handler func(*amqp.AlertsChangedMessage) error, retry time.Duration, logger *applog.Logger) {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	if retry <= 0 {
		retry = 5 * time.Second
	}

	for {
		err := consumer.ConsumeAlertsChanged(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Alert relay interrupted", applog.FieldError, errString(err), "retry_in", retry)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "consumer returned"
	}
	return err.Error()
}
