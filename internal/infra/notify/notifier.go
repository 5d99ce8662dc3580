// Package notify defines the paging and status-page transport the governor
// emits notifications to.
package notify

import (
	"context"
	"log/slog"

	"github.com/vietddude/governor/internal/core/domain"
)

// Notifier delivers a notification to its audience's transport.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// LogNotifier writes notifications to the structured log. Used when no
// transport is configured so notifications are never silently dropped.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Notify logs the notification with its audience and severity.
func (n *LogNotifier) Notify(ctx context.Context, notification domain.Notification) error {
	n.log.Warn("notification",
		"audience", notification.Audience,
		"severity", notification.Severity,
		"channel", notification.Channel,
		"message", notification.Message,
	)
	return nil
}
