// Package applog delivers notifications to the application log.
package applog

import (
	"context"
	"log/slog"

	"beacon/internal/domain/notification"
	"beacon/internal/logging"
)

var _ notification.Transport = (*Transport)(nil)

// Transport writes "description: message (k=v, ...)" at the slog level
// matching the category severity.
type Transport struct {
	log *slog.Logger
}

// NewTransport creates a log transport. Nil means slog.Default().
func NewTransport(log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	return &Transport{log: log}
}

// Name identifies the transport in dispatcher reports.
func (t *Transport) Name() string { return "log" }

func (t *Transport) Send(ctx context.Context, category *notification.Category, message string, mctx notification.MessageContext) error {
	if category == nil {
		return notification.ErrNilCategory
	}

	text := category.Description() + ": " + message
	if len(mctx) > 0 {
		text += " (" + mctx.Compact() + ")"
	}

	t.log.Log(ctx, Level(category.Severity()), text)
	return nil
}

// Level maps a severity to a slog level.
func Level(s notification.Severity) slog.Level {
	switch s {
	case notification.SeverityTrace:
		return logging.LevelTrace
	case notification.SeverityDebug:
		return slog.LevelDebug
	case notification.SeverityWarn:
		return slog.LevelWarn
	case notification.SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
