package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

// stubExecutor echoes its "text" configuration and records every rendered action.
type stubExecutor struct {
	types []models.ActionType

	mu       sync.Mutex
	executed []models.Action
}

func (s *stubExecutor) Types() []models.ActionType { return s.types }

func (s *stubExecutor) Execute(_ context.Context, _ *models.ExecutionContext, action models.Action, _ *slog.Logger) (protocol.ActionOutput, error) {
	s.mu.Lock()
	s.executed = append(s.executed, action)
	s.mu.Unlock()

	text, _ := action.Configuration["text"].(string)

	switch action.Configuration["fail"] {
	case "recoverable":
		return protocol.ActionOutput{}, errors.New("delivery refused")
	case "critical":
		return protocol.ActionOutput{}, protocol.ErrContextCritical
	case "panic":
		panic("executor exploded")
	}

	return protocol.ActionOutput{Value: text, Variables: map[string]string{"last_action": action.ID}}, nil
}

func (s *stubExecutor) ran() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.executed))
	for _, action := range s.executed {
		ids = append(ids, action.ID)
	}

	return ids
}

func (s *stubExecutor) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, 0, len(s.executed))
	for _, action := range s.executed {
		text, _ := action.Configuration["text"].(string)
		texts = append(texts, text)
	}

	return texts
}

// funcEvaluator adapts a function to protocol.TriggerEvaluator.
type funcEvaluator struct {
	kinds    []models.TriggerKind
	evaluate func(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (protocol.Evaluation, error)
}

func (f *funcEvaluator) Kinds() []models.TriggerKind { return f.kinds }

func (f *funcEvaluator) Evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (protocol.Evaluation, error) {
	return f.evaluate(ctx, workflow, trigger)
}

func textAction(id, text string) models.Action {
	return models.Action{
		ID:            id,
		Type:          models.ActionLog,
		Configuration: map[string]any{"text": text},
	}
}
