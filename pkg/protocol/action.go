package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/tripwire/pkg/models"
)

// ActionOutput is what an action contributes to the execution variables.
// Value is stored under the action's output variable; Variables are merged as-is.
type ActionOutput struct {
	Value     string
	Variables map[string]string
}

// ActionExecutor performs the effect of one or more action types. The action it
// receives already has its configuration placeholders rendered.
type ActionExecutor interface {
	Types() []models.ActionType
	Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (ActionOutput, error)
}
