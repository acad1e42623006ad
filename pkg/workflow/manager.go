// Package workflow drives trigger evaluation and runs the resulting action pipelines.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/config"
	"github.com/dukex/tripwire/pkg/eventbus"
	"github.com/dukex/tripwire/pkg/events"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/otelhelper"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/registry"
	"github.com/dukex/tripwire/pkg/triggers"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCycleInProgress  = errors.New("trigger check already in progress")
	ErrWorkflowDisabled = errors.New("workflow is disabled")
	ErrInvalidInput     = errors.New("manual trigger input rejected")
)

// maxParallelChecks bounds how many evaluators one cycle runs at once.
const maxParallelChecks = 8

type Manager struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	executor    *Executor
	dispatcher  *Dispatcher
	bus         eventbus.EventPublisher
	metrics     *metrics.Registry
	tracer      trace.Tracer
	config      config.Engine
	logger      *slog.Logger
	now         func() time.Time

	cycle     sync.Mutex
	lastCycle atomic.Int64
}

type ManagerOption func(*Manager)

func WithEventBus(bus eventbus.EventPublisher) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

func WithMetrics(r *metrics.Registry) ManagerOption {
	return func(m *Manager) { m.metrics = r }
}

func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(
	p persistence.Persistence,
	registry *registry.Registry,
	executor *Executor,
	cfg config.Engine,
	logger *slog.Logger,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		persistence: p,
		registry:    registry,
		executor:    executor,
		bus:         eventbus.Nop{},
		tracer:      otelhelper.NoopTracer(),
		config:      cfg,
		logger:      logger.With("module", "trigger_manager"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.dispatcher = NewDispatcher(cfg.MaxConcurrentExecutions, logger)

	return m
}

// Start runs the poll loop until ctx is cancelled, then cancels in-flight
// executions and waits for them. A backstop goroutine re-runs the check when
// the loop has not completed a cycle for two poll intervals.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("Starting trigger manager",
		"poll_interval", m.config.PollInterval,
		"backstop_interval", m.config.BackstopInterval,
		"prune_interval", m.config.PruneInterval,
	)

	poll := time.NewTicker(m.config.PollInterval)
	defer poll.Stop()

	prune := time.NewTicker(m.config.PruneInterval)
	defer prune.Stop()

	var backstop sync.WaitGroup

	backstop.Add(1)

	go func() {
		defer backstop.Done()

		m.runBackstop(ctx)
	}()

	m.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping trigger manager")
			backstop.Wait()
			m.Stop()

			return nil
		case <-poll.C:
			m.runCycle(ctx)
		case <-prune.C:
			if _, err := m.PruneDedup(ctx); err != nil {
				m.logger.Error("Dedup prune failed", "error", err)
			}
		}
	}
}

func (m *Manager) runBackstop(ctx context.Context) {
	ticker := time.NewTicker(m.config.BackstopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Backstop(ctx)
		}
	}
}

// Backstop runs a cycle when the last completed one is older than twice the poll
// interval and reports whether it did.
func (m *Manager) Backstop(ctx context.Context) bool {
	last := m.LastCycle()
	if !last.IsZero() && m.now().Sub(last) < 2*m.config.PollInterval {
		return false
	}

	m.logger.Warn("Poll loop is stale, running backstop check", "last_cycle", last)
	m.runCycle(ctx)

	return true
}

func (m *Manager) runCycle(ctx context.Context) {
	results, err := m.CheckTriggers(ctx)

	switch {
	case errors.Is(err, ErrCycleInProgress):
		m.logger.Debug("Skipping cycle, previous one still running")
	case err != nil:
		m.logger.Error("Trigger check failed", "error", err)
	default:
		fired := 0

		for _, result := range results {
			if result.Triggered {
				fired++
			}
		}

		m.logger.Debug("Trigger check completed", "checked", len(results), "fired", fired)
	}
}

// LastCycle is when the most recent CheckTriggers call completed.
func (m *Manager) LastCycle() time.Time {
	nanos := m.lastCycle.Load()
	if nanos == 0 {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}

// CheckTriggers evaluates every polled trigger of every enabled workflow once.
// Evaluator errors and panics become not-fired results; fired triggers are
// dispatched and their result carries the execution ID. Cycles never overlap.
func (m *Manager) CheckTriggers(ctx context.Context) ([]models.TriggerExecutionResult, error) {
	if !m.cycle.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer m.cycle.Unlock()

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "triggers.check")
	defer span.End()

	workflows, err := persistence.EnabledWorkflows(ctx, m.persistence)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	type check struct {
		workflow *models.Workflow
		trigger  models.Trigger
	}

	var checks []check

	for _, workflow := range workflows {
		for _, trigger := range workflow.Triggers {
			if trigger.Kind.EventDriven() {
				continue
			}

			checks = append(checks, check{workflow: workflow, trigger: trigger})
		}
	}

	results := make([]models.TriggerExecutionResult, len(checks))

	var group errgroup.Group

	group.SetLimit(maxParallelChecks)

	for i, c := range checks {
		group.Go(func() error {
			results[i] = m.checkTrigger(ctx, c.workflow, &c.trigger)

			return nil
		})
	}

	_ = group.Wait()

	m.lastCycle.Store(m.now().UnixNano())

	return results, nil
}

func (m *Manager) checkTrigger(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) models.TriggerExecutionResult {
	logger := m.logger.With("workflow_id", workflow.ID, "trigger_id", trigger.ID, "trigger_kind", trigger.Kind)
	result := models.TriggerExecutionResult{
		WorkflowID:  workflow.ID,
		TriggerID:   trigger.ID,
		TriggerKind: trigger.Kind,
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "trigger.evaluate",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.TriggerIDKey, trigger.ID),
		attribute.String(otelhelper.TriggerKindKey, string(trigger.Kind)),
	)
	defer span.End()

	evaluation, err := m.evaluate(ctx, workflow, trigger)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrSourceUnavailable):
			result.Message = triggers.MessageSourceUnavailable

			logger.Debug("Source unavailable")
			m.metrics.TriggerChecked(string(trigger.Kind), metrics.ResultNotFired)
		default:
			result.Message = err.Error()

			otelhelper.SetResult(span, err)
			logger.Error("Trigger evaluation failed", "error", err)
			m.metrics.TriggerChecked(string(trigger.Kind), metrics.ResultError)
		}

		return result
	}

	otelhelper.SetResult(span, nil)
	span.SetAttributes(attribute.Bool(otelhelper.TriggerFiredKey, evaluation.Fired))

	result.Message = evaluation.Message
	result.RetryAfter = evaluation.RetryAfter

	if !evaluation.Fired {
		if evaluation.Message == triggers.MessageRateLimited {
			logger.Debug("Trigger check rate limited", "retry_after", evaluation.RetryAfter)
			m.metrics.TriggerChecked(string(trigger.Kind), metrics.ResultRateLimited)
		} else {
			m.metrics.TriggerChecked(string(trigger.Kind), metrics.ResultNotFired)
		}

		return result
	}

	m.metrics.TriggerChecked(string(trigger.Kind), metrics.ResultFired)

	userID := actions.FirstNonEmpty(trigger.UserID, evaluation.TriggerData["user_id"], workflow.Owner)
	execCtx := models.NewExecutionContext(NewExecutionID(), workflow, userID, trigger.Kind, evaluation.TriggerData)
	execCtx.TriggerID = trigger.ID

	result.Triggered = true
	result.ExecutionID = execCtx.ID

	logger.Info("Trigger fired", "execution_id", execCtx.ID)
	m.Dispatch(workflow, execCtx)

	return result
}

func (m *Manager) evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (evaluation protocol.Evaluation, err error) {
	evaluator, err := m.registry.Evaluator(trigger.Kind)
	if err != nil {
		return protocol.Evaluation{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Evaluator panicked", "trigger_id", trigger.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("evaluator panicked: %v", r)
		}
	}()

	return evaluator.Evaluate(ctx, workflow, trigger)
}

// Dispatch runs the pipeline concurrently and returns a channel that receives
// exactly one result. Executions use the manager's root context, not the caller's.
func (m *Manager) Dispatch(workflow *models.Workflow, execCtx *models.ExecutionContext) <-chan *models.ExecutionResult {
	out := make(chan *models.ExecutionResult, 1)

	m.publish(workflow.ID, events.WorkflowTriggered{
		BaseEvent:   events.NewBaseEvent(events.WorkflowTriggeredEvent, workflow.ID),
		ExecutionID: execCtx.ID,
		TriggerID:   execCtx.TriggerID,
		TriggerKind: string(execCtx.TriggerKind),
		UserID:      execCtx.UserID,
		TriggerData: execCtx.TriggerData,
	})

	m.dispatcher.Go(
		func(ctx context.Context) {
			var result *models.ExecutionResult

			defer func() {
				if result == nil {
					result = failedResult(execCtx, "execution panicked")
					m.finish(context.WithoutCancel(ctx), result)
				}

				out <- result
			}()

			result = m.execute(ctx, workflow, execCtx)
		},
		func(err error) {
			result := failedResult(execCtx, err.Error())
			m.finish(context.Background(), result)
			out <- result
		},
	)

	return out
}

func (m *Manager) execute(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext) *models.ExecutionResult {
	m.metrics.ExecutionStarted()
	defer m.metrics.ExecutionDone()

	result := m.executor.Run(ctx, workflow, execCtx)
	m.finish(context.WithoutCancel(ctx), result)

	return result
}

// finish records, counts and announces a completed execution.
func (m *Manager) finish(ctx context.Context, result *models.ExecutionResult) {
	if err := m.persistence.ExecutionHistoryRepository().Record(ctx, result); err != nil {
		m.logger.Error("Failed to record execution", "execution_id", result.ExecutionID, "error", err)
	}

	m.metrics.ExecutionFinished(string(result.TriggerKind), result.Success, result.Duration)

	if result.Success {
		m.publish(result.WorkflowID, events.WorkflowFinished{
			BaseEvent:   events.NewBaseEvent(events.WorkflowFinishedEvent, result.WorkflowID),
			ExecutionID: result.ExecutionID,
			ActionsRun:  result.ActionsRun,
			Variables:   result.Variables,
			Duration:    result.Duration,
		})

		return
	}

	m.publish(result.WorkflowID, events.WorkflowFailed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowFailedEvent, result.WorkflowID),
		ExecutionID: result.ExecutionID,
		Error:       result.Message,
		ActionsRun:  result.ActionsRun,
		Duration:    result.Duration,
	})
}

func (m *Manager) publish(key string, event eventbus.Event) {
	if err := m.bus.Publish(context.Background(), key, event); err != nil {
		m.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// TriggerWorkflow runs a workflow on explicit request. The payload becomes the
// trigger data and must satisfy the manual trigger's input schema, if any.
func (m *Manager) TriggerWorkflow(ctx context.Context, workflowID, userID string, payload map[string]string) (string, error) {
	workflow, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if !workflow.Enabled {
		return "", fmt.Errorf("%w: %s", ErrWorkflowDisabled, workflowID)
	}

	var trigger *models.Trigger
	if manual := workflow.TriggersOfKind(models.TriggerKindManual); len(manual) > 0 {
		trigger = &manual[0]
	}

	if trigger != nil && trigger.Manual != nil && len(trigger.Manual.InputSchema) > 0 {
		if err := validateInput(trigger.Manual.InputSchema, payload); err != nil {
			return "", err
		}
	}

	triggerUser := ""
	if trigger != nil {
		triggerUser = trigger.UserID
	}

	userID = actions.FirstNonEmpty(userID, triggerUser, workflow.Owner)
	if userID == "" {
		return "", ErrMissingUser
	}

	data := make(map[string]string, len(payload)+3)
	maps.Copy(data, payload)
	data["trigger_type"] = string(models.TriggerKindManual)
	data["user_id"] = userID
	data["triggered_at"] = m.now().UTC().Format(time.RFC3339)

	execCtx := models.NewExecutionContext(NewExecutionID(), workflow, userID, models.TriggerKindManual, data)
	if trigger != nil {
		execCtx.TriggerID = trigger.ID
	}

	m.logger.Info("Manual trigger", "workflow_id", workflowID, "execution_id", execCtx.ID)
	m.Dispatch(workflow, execCtx)

	return execCtx.ID, nil
}

func validateInput(schema map[string]any, payload map[string]string) error {
	document := make(map[string]any, len(payload))
	for key, value := range payload {
		document[key] = value
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("%w: schema: %w", ErrInvalidInput, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		problems = append(problems, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
}

// PruneDedup removes dedup records older than the effective retention.
func (m *Manager) PruneDedup(ctx context.Context) (int, error) {
	before := m.now().Add(-m.config.EffectiveDedupRetention())

	removed, err := m.persistence.DedupRepository().Prune(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dedup records: %w", err)
	}

	m.metrics.DedupPruned(removed)
	m.logger.Info("Pruned dedup records", "removed", removed, "before", before)

	return removed, nil
}

// Wait blocks until every dispatched execution has finished.
func (m *Manager) Wait() {
	m.dispatcher.Wait()
}

// Stop cancels in-flight executions and waits for them to return.
func (m *Manager) Stop() {
	m.dispatcher.Shutdown()
}

func failedResult(execCtx *models.ExecutionContext, message string) *models.ExecutionResult {
	return &models.ExecutionResult{
		ExecutionID: execCtx.ID,
		WorkflowID:  execCtx.WorkflowID,
		UserID:      execCtx.UserID,
		TriggerKind: execCtx.TriggerKind,
		Message:     message,
		ActionsRun:  []string{},
		Variables:   execCtx.Snapshot(),
		Timestamp:   time.Now().UTC(),
	}
}
