// Package notify delivers post-commit operation notifications to log sinks
// and Redis pub/sub subscribers.
package notify

import (
	"context"
	"errors"

	"github.com/hylla/kanfile/internal/app"
)

// Fanout delivers one notification to every configured notifier.
type Fanout []app.Notifier

// Notify sends n to each notifier and joins their failures.
func (f Fanout) Notify(ctx context.Context, n app.Notification) error {
	var errs []error
	for _, notifier := range f {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each notification as a structured log event.
type Log struct {
	logger app.Logger
}

// NewLog constructs a log notifier.
func NewLog(logger app.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs n at info level, or warn level for a failed operation.
func (l *Log) Notify(_ context.Context, n app.Notification) error {
	if l == nil || l.logger == nil {
		return nil
	}
	keyvals := []any{
		"op", n.Op,
		"ok", n.OK,
		"entry_id", n.EntryID,
		"actor", n.Actor,
		"affected", len(n.Affected),
		"instance_id", n.InstanceID,
	}
	if !n.OK {
		l.logger.Warn("operation failed", keyvals...)
		return nil
	}
	l.logger.Info("operation committed", keyvals...)
	return nil
}
