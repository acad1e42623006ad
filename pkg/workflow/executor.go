package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/otelhelper"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/registry"
	"github.com/dukex/tripwire/pkg/template"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMissingUser  = errors.New("execution has no user identity")
	ErrActionPanic  = errors.New("action panicked")
	ErrInvalidDelay = errors.New("delay requires a positive duration")
)

// Executor runs a workflow's actions in order against one execution context.
type Executor struct {
	registry *registry.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics.Registry
}

type ExecutorOption func(*Executor)

func WithExecutorTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

func WithExecutorMetrics(m *metrics.Registry) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func NewExecutor(registry *registry.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		registry: registry,
		logger:   logger.With("module", "workflow_executor"),
		tracer:   otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

type delayConfig struct {
	Duration time.Duration `json:"duration"`
	Seconds  int           `json:"seconds"`
}

type conditionalConfig struct {
	Expression string `json:"expression"`
}

// Run executes the pipeline. Recoverable action failures are recorded and the
// pipeline continues; a missing user or a context-critical failure aborts the
// remainder and marks the result failed. Run never returns nil.
func (e *Executor) Run(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext) *models.ExecutionResult {
	started := time.Now()
	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execCtx.ID,
		"trigger_kind", execCtx.TriggerKind,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		attribute.String(otelhelper.TriggerKindKey, string(execCtx.TriggerKind)),
	)
	defer span.End()

	result := &models.ExecutionResult{
		ExecutionID: execCtx.ID,
		WorkflowID:  workflow.ID,
		UserID:      execCtx.UserID,
		TriggerKind: execCtx.TriggerKind,
		ActionsRun:  []string{},
	}

	var abort error

	if strings.TrimSpace(execCtx.UserID) == "" {
		abort = fmt.Errorf("%w: %w", protocol.ErrContextCritical, ErrMissingUser)
	}

	failed := 0

	for _, action := range workflow.Actions {
		if abort != nil {
			break
		}

		if err := ctx.Err(); err != nil {
			abort = fmt.Errorf("execution cancelled: %w", err)

			break
		}

		outcomes, err := e.runAction(ctx, execCtx, action, logger)
		for _, outcome := range outcomes {
			result.ActionsRun = append(result.ActionsRun, outcome.ActionID)
			result.Outcomes = append(result.Outcomes, outcome)

			if !outcome.Success && !outcome.Skipped {
				failed++

				e.metrics.ActionFailed(string(outcome.Type))
			}
		}

		if errors.Is(err, protocol.ErrContextCritical) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			abort = err
		}
	}

	result.Variables = execCtx.Snapshot()
	result.Duration = time.Since(started)
	result.Timestamp = time.Now().UTC()

	switch {
	case abort != nil:
		result.Success = false
		result.Message = "pipeline aborted: " + abort.Error()

		otelhelper.SetError(span, abort)
		logger.Error("Workflow execution aborted", "error", abort, "actions_run", len(result.ActionsRun))
	case failed > 0:
		result.Success = true
		result.Message = fmt.Sprintf("completed with %d failed action(s)", failed)

		logger.Warn("Workflow execution completed with failures", "failed", failed)
	default:
		result.Success = true
		result.Message = fmt.Sprintf("completed %d action(s)", len(result.ActionsRun))

		logger.Info("Workflow execution completed", "duration", result.Duration)
	}

	return result
}

// runAction renders the action's configuration against the current variables,
// performs it and merges its outputs. Conditionals return the outcome of the
// chosen branch after their own.
func (e *Executor) runAction(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) ([]models.ActionOutcome, error) {
	started := time.Now()
	rendered := template.RenderAction(action, execCtx.Variables)
	logger = logger.With("action_id", action.ID, "action_type", action.Type)

	actionCtx, span := otelhelper.StartSpan(ctx, e.tracer, "action.run",
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
	)

	outcome := models.ActionOutcome{ActionID: action.ID, Type: action.Type}

	var (
		value string
		err   error
		next  *models.Action
	)

	switch action.Type {
	case models.ActionDelay:
		err = e.delay(actionCtx, rendered)
	case models.ActionConditional:
		next, err = e.branch(rendered, execCtx)
		if err == nil {
			value = "else"
			if next == action.Then {
				value = "then"
			}
		}
	default:
		value, err = e.perform(actionCtx, execCtx, rendered, logger)
	}

	otelhelper.SetResult(span, err)
	span.End()

	outcome.Duration = time.Since(started)
	outcome.Output = value

	if err != nil {
		outcome.Error = err.Error()
		logger.Error("Action failed", "error", err)

		return []models.ActionOutcome{outcome}, err
	}

	outcome.Success = true

	if action.Type == models.ActionConditional && next == nil {
		outcome.Output = "none"

		return []models.ActionOutcome{outcome}, nil
	}

	outcomes := []models.ActionOutcome{outcome}

	if next != nil {
		branchOutcomes, err := e.runAction(ctx, execCtx, *next, logger)

		return append(outcomes, branchOutcomes...), err
	}

	return outcomes, nil
}

func (e *Executor) perform(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (value string, err error) {
	executor, err := e.registry.Executor(action.Type)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()

	output, err := executor.Execute(ctx, execCtx, action, logger)
	if err != nil {
		return "", err
	}

	if action.OutputVariable != "" {
		execCtx.Variables[action.OutputVariable] = output.Value
	}

	maps.Copy(execCtx.Variables, output.Variables)

	return output.Value, nil
}

// delay blocks the execution goroutine only.
func (e *Executor) delay(ctx context.Context, action models.Action) error {
	var cfg delayConfig
	if err := actions.Decode(action, &cfg); err != nil {
		return err
	}

	wait := cfg.Duration
	if wait <= 0 {
		wait = time.Duration(cfg.Seconds) * time.Second
	}

	if wait <= 0 {
		return fmt.Errorf("%w: action %s", ErrInvalidDelay, action.ID)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) branch(action models.Action, execCtx *models.ExecutionContext) (*models.Action, error) {
	var cfg conditionalConfig
	if err := actions.Decode(action, &cfg); err != nil {
		return nil, err
	}

	matched, err := models.EvaluateCondition(cfg.Expression, execCtx.Variables)
	if err != nil {
		return nil, err
	}

	if matched {
		return action.Then, nil
	}

	return action.Else, nil
}

// NewExecutionID returns a short random execution identifier.
func NewExecutionID() string {
	return "exec-" + uuid.New().String()[:8]
}
