// Package logaction implements the log action, which writes a rendered message
// to the engine log.
package logaction

import (
	"context"
	"log/slog"

	"github.com/dukex/tripwire/pkg/actions"
	tlog "github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

type LogAction struct{}

func NewLogAction() *LogAction {
	return &LogAction{}
}

func (*LogAction) Types() []models.ActionType {
	return []models.ActionType{models.ActionLog}
}

type config struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func (a *LogAction) Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	var cfg config
	if err := actions.Decode(action, &cfg); err != nil {
		return protocol.ActionOutput{}, err
	}

	logger = logger.With("action_type", "log", "execution_id", execCtx.ID, "workflow_id", execCtx.WorkflowID)

	message := cfg.Message
	if message == "" {
		message = "workflow log"
		logger = logger.With("variables", execCtx.Snapshot())
	}

	logger.Log(ctx, tlog.ParseLevel(cfg.Level), message)

	return protocol.ActionOutput{Value: message}, nil
}
