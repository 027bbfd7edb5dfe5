package core

import (
	"context"
	"log/slog"
)

// LogNotifier is a Notifier that writes notifications to the structured log.
// It is used when no UI sink is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) Success(ctx context.Context, title, message string) {
	n.logger().InfoContext(ctx, "notification", "kind", "success", "title", title, "message", message)
}

func (n LogNotifier) Error(ctx context.Context, title, message string) {
	n.logger().ErrorContext(ctx, "notification", "kind", "error", "title", title, "message", message)
}

func (n LogNotifier) Info(ctx context.Context, title, message string) {
	n.logger().InfoContext(ctx, "notification", "kind", "info", "title", title, "message", message)
}
