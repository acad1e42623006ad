// Package chat evaluates new_chat_message and chat_command triggers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/ratelimit"
	"github.com/dukex/tripwire/pkg/triggers"
)

const (
	DefaultPageSize = 20

	// MessageDisabled is reported by Disabled for every chat trigger.
	MessageDisabled = "chat polling disabled"

	rateLimitSource = "chat"
	eventPrefix     = "chat:"
)

var chatKinds = []models.TriggerKind{models.TriggerKindNewChatMessage, models.TriggerKindChatCommand}

// Disabled is the default chat evaluator for deployments without a chat source.
type Disabled struct{}

func (Disabled) Kinds() []models.TriggerKind {
	return chatKinds
}

func (Disabled) Evaluate(context.Context, *models.Workflow, *models.Trigger) (protocol.Evaluation, error) {
	return protocol.NotFired(MessageDisabled), nil
}

// Evaluator polls a ChatProvider the same way the email evaluator polls an inbox:
// rate limit, query, drop processed, claim the newest, fire.
type Evaluator struct {
	provider     protocol.ChatProvider
	dedup        persistence.DedupRepository
	limiter      ratelimit.Limiter
	cursors      *triggers.Cursors
	pageSize     int
	writeRetries uint64
	now          func() time.Time
	logger       *slog.Logger
}

func NewEvaluator(provider protocol.ChatProvider, dedup persistence.DedupRepository, limiter ratelimit.Limiter, writeRetries uint64, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		provider:     provider,
		dedup:        dedup,
		limiter:      limiter,
		cursors:      triggers.NewCursors(),
		pageSize:     DefaultPageSize,
		writeRetries: writeRetries,
		now:          time.Now,
		logger:       logger.With("module", "chat_trigger"),
	}
}

func (e *Evaluator) Kinds() []models.TriggerKind {
	return chatKinds
}

func (e *Evaluator) Evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (protocol.Evaluation, error) {
	filter := trigger.Chat
	if filter == nil {
		return protocol.Evaluation{}, fmt.Errorf("%w: trigger %s has no chat filter", models.ErrInvalidTrigger, trigger.ID)
	}

	command := ""
	if trigger.Kind == models.TriggerKindChatCommand {
		command = strings.TrimSpace(filter.Command)
		if command == "" {
			return protocol.Evaluation{}, fmt.Errorf("%w: chat_command trigger %s has no command", models.ErrInvalidTrigger, trigger.ID)
		}
	}

	decision, err := e.limiter.TryAcquire(ctx, ratelimit.Key(rateLimitSource, workflow.ID, trigger.UserID))
	if err != nil {
		return protocol.Evaluation{}, fmt.Errorf("rate limiter: %w", err)
	}

	if !decision.Allowed {
		return protocol.Evaluation{Message: triggers.MessageRateLimited, RetryAfter: decision.RetryAfter}, nil
	}

	condition := protocol.ChatCondition{
		Contains:      filter.Condition,
		CommandPrefix: command,
		ChatID:        filter.ChatID,
		NewerThan:     e.cursors.Get(workflow.ID, trigger.ID),
	}

	messages, err := e.provider.ListMessages(ctx, trigger.UserID, condition, e.pageSize)
	if errors.Is(err, protocol.ErrSourceUnavailable) {
		return protocol.NotFired(triggers.MessageSourceUnavailable), nil
	}

	if err != nil {
		return protocol.Evaluation{}, fmt.Errorf("failed to list chat messages: %w", err)
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.After(messages[j].Timestamp) })

	for _, message := range messages {
		if message.Timestamp.Before(condition.NewerThan) || !matches(condition, message) {
			continue
		}

		isNew, err := e.dedup.IsNew(ctx, eventPrefix+message.ID, workflow.ID)
		if err != nil {
			return protocol.Evaluation{}, fmt.Errorf("dedup lookup: %w", err)
		}

		if !isNew {
			continue
		}

		written, err := triggers.Claim(ctx, e.dedup, models.DedupRecord{
			EventID:     eventPrefix + message.ID,
			WorkflowID:  workflow.ID,
			ProcessedAt: e.now(),
			Sender:      message.Sender,
			EventTime:   message.Timestamp,
		}, e.writeRetries, triggers.DefaultRetryDelay)
		if err != nil {
			e.logger.WarnContext(ctx, "could not record processed chat message", "workflow_id", workflow.ID, "message_id", message.ID, "error", err)

			return protocol.NotFired(triggers.MessageDedupWriteFailed), nil
		}

		if !written {
			return protocol.NotFired(triggers.MessageAlreadyProcessed), nil
		}

		e.cursors.Advance(workflow.ID, trigger.ID, message.Timestamp.Add(-time.Second))

		return protocol.Evaluation{
			Fired:       true,
			Message:     "new chat message from " + message.Sender,
			TriggerData: triggerData(trigger, command, message),
		}, nil
	}

	return protocol.NotFired("no new messages"), nil
}

func matches(condition protocol.ChatCondition, message models.ChatMessage) bool {
	if condition.ChatID != "" && condition.ChatID != message.ChatID {
		return false
	}

	if condition.CommandPrefix != "" && !isCommand(message.Text, condition.CommandPrefix) {
		return false
	}

	return condition.Contains == "" || strings.Contains(strings.ToLower(message.Text), strings.ToLower(condition.Contains))
}

// isCommand matches the literal prefix followed by end of text or whitespace.
func isCommand(text, command string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, command) {
		return false
	}

	rest := text[len(command):]

	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n'
}

func triggerData(trigger *models.Trigger, command string, message models.ChatMessage) map[string]string {
	args := ""
	if command != "" {
		args = strings.TrimSpace(strings.TrimSpace(message.Text)[len(command):])
	}

	return map[string]string{
		"message_id":     message.ID,
		"message_text":   message.Text,
		"message_sender": message.Sender,
		"chat_id":        message.ChatID,
		"command":        command,
		"command_args":   args,
		"trigger_type":   string(trigger.Kind),
		"user_id":        trigger.UserID,
	}
}
