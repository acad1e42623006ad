// Package registry is the dispatch table from trigger kind to evaluator and
// from action type to executor.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

var (
	ErrNoEvaluator = errors.New("trigger kind not registered")
	ErrNoExecutor  = errors.New("action type not registered")
)

type Registry struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	evaluators map[models.TriggerKind]protocol.TriggerEvaluator
	executors  map[models.ActionType]protocol.ActionExecutor
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:     log,
		evaluators: make(map[models.TriggerKind]protocol.TriggerEvaluator),
		executors:  make(map[models.ActionType]protocol.ActionExecutor),
	}
}

// RegisterEvaluator binds the evaluator to every kind it declares, replacing earlier bindings.
func (r *Registry) RegisterEvaluator(evaluator protocol.TriggerEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range evaluator.Kinds() {
		if _, exists := r.evaluators[kind]; exists {
			r.logger.Debug("replacing trigger evaluator", "kind", kind)
		}

		r.evaluators[kind] = evaluator
	}
}

// RegisterExecutor binds the executor to every action type it declares.
func (r *Registry) RegisterExecutor(executor protocol.ActionExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, actionType := range executor.Types() {
		r.executors[actionType] = executor
	}
}

func (r *Registry) Evaluator(kind models.TriggerKind) (protocol.TriggerEvaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evaluator, ok := r.evaluators[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEvaluator, kind)
	}

	return evaluator, nil
}

func (r *Registry) Executor(actionType models.ActionType) (protocol.ActionExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, actionType)
	}

	return executor, nil
}

// TriggerKinds returns the registered kinds, sorted.
func (r *Registry) TriggerKinds() []models.TriggerKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.TriggerKind, 0, len(r.evaluators))
	for kind := range r.evaluators {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	return kinds
}

// ActionTypes returns the registered action types, sorted.
func (r *Registry) ActionTypes() []models.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.ActionType, 0, len(r.executors))
	for actionType := range r.executors {
		types = append(types, actionType)
	}

	slices.Sort(types)

	return types
}

// CheckWorkflow reports triggers and actions that no registered component can serve.
// Geofence kinds are served by the geofence adapter and conditional/delay actions
// by the executor itself, so they are never reported.
func (r *Registry) CheckWorkflow(workflow *models.Workflow) []error {
	var problems []error

	for _, trigger := range workflow.Triggers {
		if trigger.Kind.EventDriven() {
			continue
		}

		if _, err := r.Evaluator(trigger.Kind); err != nil {
			problems = append(problems, fmt.Errorf("trigger %s: %w", trigger.ID, err))
		}
	}

	var walk func(action *models.Action)
	walk = func(action *models.Action) {
		switch action.Type {
		case models.ActionConditional:
			if action.Then != nil {
				walk(action.Then)
			}

			if action.Else != nil {
				walk(action.Else)
			}
		case models.ActionDelay:
		default:
			if _, err := r.Executor(action.Type); err != nil {
				problems = append(problems, fmt.Errorf("action %s: %w", action.ID, err))
			}
		}
	}

	for i := range workflow.Actions {
		walk(&workflow.Actions[i])
	}

	return problems
}
