package main

import (
	"context"
	"log/slog"

	"github.com/dukex/tripwire/pkg/eventbus"
	"github.com/dukex/tripwire/pkg/events"
)

// registerEventLogging writes every lifecycle event to the log.
func registerEventLogging(bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("module", "events")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowTriggeredEvent: func(_ context.Context, event any) error {
			if e, ok := event.(*events.WorkflowTriggered); ok {
				logger.Info("Workflow triggered",
					"workflow_id", e.WorkflowID,
					"execution_id", e.ExecutionID,
					"trigger_kind", e.TriggerKind,
					"user_id", e.UserID,
				)
			}

			return nil
		},
		events.WorkflowFinishedEvent: func(_ context.Context, event any) error {
			if e, ok := event.(*events.WorkflowFinished); ok {
				logger.Info("Workflow finished",
					"workflow_id", e.WorkflowID,
					"execution_id", e.ExecutionID,
					"actions_run", e.ActionsRun,
					"duration", e.Duration,
				)
			}

			return nil
		},
		events.WorkflowFailedEvent: func(_ context.Context, event any) error {
			if e, ok := event.(*events.WorkflowFailed); ok {
				logger.Warn("Workflow failed",
					"workflow_id", e.WorkflowID,
					"execution_id", e.ExecutionID,
					"error", e.Error,
				)
			}

			return nil
		},
		events.GeofencesRegisteredEvent: func(_ context.Context, event any) error {
			if e, ok := event.(*events.GeofencesRegistered); ok {
				logger.Info("Geofences registered", "count", e.Count)
			}

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return nil
}
