// Package notify implements the in-system notification action.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

type Action struct {
	notifier protocol.Notifier
}

func NewAction(notifier protocol.Notifier) *Action {
	return &Action{notifier: notifier}
}

func (*Action) Types() []models.ActionType {
	return []models.ActionType{models.ActionNotify}
}

type config struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID string `json:"user_id"`
}

func (a *Action) Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	userID, err := actions.RequireUser(execCtx)
	if err != nil {
		return protocol.ActionOutput{}, err
	}

	var cfg config
	if err := actions.Decode(action, &cfg); err != nil {
		return protocol.ActionOutput{}, err
	}

	if err := actions.Required(action, "body", cfg.Body); err != nil {
		return protocol.ActionOutput{}, err
	}

	if a.notifier == nil {
		return protocol.ActionOutput{}, protocol.ErrSourceUnavailable
	}

	recipient := actions.FirstNonEmpty(cfg.UserID, userID)
	title := actions.FirstNonEmpty(cfg.Title, "Workflow notification")

	if err := a.notifier.Notify(ctx, recipient, title, cfg.Body); err != nil {
		return protocol.ActionOutput{}, fmt.Errorf("notify %s: %w", recipient, err)
	}

	logger.DebugContext(ctx, "notification sent", "recipient", recipient)

	return protocol.ActionOutput{Value: recipient}, nil
}
