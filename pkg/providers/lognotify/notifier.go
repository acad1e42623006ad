// Package lognotify delivers in-system notifications to the engine log.
package lognotify

import (
	"context"
	"log/slog"
)

type Notifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger.With("module", "notifier")}
}

func (n *Notifier) Notify(ctx context.Context, userID, title, body string) error {
	n.logger.InfoContext(ctx, "Notification", "user_id", userID, "title", title, "body", body)

	return nil
}
