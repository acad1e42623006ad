// Package email evaluates new_email and filtered_email triggers against an email provider.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/ratelimit"
	"github.com/dukex/tripwire/pkg/triggers"
)

const (
	// DefaultPageSize is how many recent emails are requested per check.
	DefaultPageSize = 5

	// DefaultWriteRetries bounds dedup write attempts after the first.
	DefaultWriteRetries = 3

	rateLimitSource = "email"
)

type Evaluator struct {
	provider     protocol.EmailProvider
	dedup        persistence.DedupRepository
	limiter      ratelimit.Limiter
	cursors      *triggers.Cursors
	pageSize     int
	writeRetries uint64
	retryDelay   time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

type Option func(*Evaluator)

func WithPageSize(size int) Option {
	return func(e *Evaluator) {
		if size > 0 {
			e.pageSize = size
		}
	}
}

func WithWriteRetries(retries uint64, delay time.Duration) Option {
	return func(e *Evaluator) {
		e.writeRetries = retries
		e.retryDelay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(provider protocol.EmailProvider, dedup persistence.DedupRepository, limiter ratelimit.Limiter, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		provider:     provider,
		dedup:        dedup,
		limiter:      limiter,
		cursors:      triggers.NewCursors(),
		pageSize:     DefaultPageSize,
		writeRetries: DefaultWriteRetries,
		retryDelay:   triggers.DefaultRetryDelay,
		now:          time.Now,
		logger:       logger.With("module", "email_trigger"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Evaluator) Kinds() []models.TriggerKind {
	return []models.TriggerKind{models.TriggerKindNewEmail, models.TriggerKindFilteredEmail}
}

// Evaluate fires for at most one email per call: the most recent matching email
// not yet processed by this workflow. The dedup record is written before firing.
func (e *Evaluator) Evaluate(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger) (protocol.Evaluation, error) {
	filter := trigger.Email
	if filter == nil {
		return protocol.Evaluation{}, fmt.Errorf("%w: trigger %s has no email filter", models.ErrInvalidTrigger, trigger.ID)
	}

	if trigger.Kind == models.TriggerKindFilteredEmail && !filter.HasFilters() {
		return protocol.Evaluation{}, fmt.Errorf("%w: filtered_email trigger %s has no filters", models.ErrInvalidTrigger, trigger.ID)
	}

	logger := e.logger.With("workflow_id", workflow.ID, "trigger_id", trigger.ID)

	decision, err := e.limiter.TryAcquire(ctx, ratelimit.Key(rateLimitSource, workflow.ID, trigger.UserID))
	if err != nil {
		return protocol.Evaluation{}, fmt.Errorf("rate limiter: %w", err)
	}

	if !decision.Allowed {
		logger.DebugContext(ctx, "email check rate limited", "retry_after", decision.RetryAfter)

		return protocol.Evaluation{Message: triggers.MessageRateLimited, RetryAfter: decision.RetryAfter}, nil
	}

	now := e.now()
	condition := protocol.EmailCondition{
		UnreadOnly: filter.UnreadOnly,
		From:       filter.From,
		Subject:    filter.Subject,
		Body:       filter.Body,
		NewerThan:  e.cursors.Get(workflow.ID, trigger.ID),
	}

	if filter.MaxAge > 0 {
		if cutoff := now.Add(-filter.MaxAge); cutoff.After(condition.NewerThan) {
			condition.NewerThan = cutoff
		}
	}

	emails, err := e.provider.CheckForNewEmails(ctx, trigger.UserID, condition, e.pageSize)
	if errors.Is(err, protocol.ErrSourceUnavailable) {
		return protocol.NotFired(triggers.MessageSourceUnavailable), nil
	}

	if err != nil {
		return protocol.Evaluation{}, fmt.Errorf("failed to query emails: %w", err)
	}

	sort.SliceStable(emails, func(i, j int) bool { return emails[i].Timestamp.After(emails[j].Timestamp) })

	var candidate *models.Email

	for i := range emails {
		if !Matches(filter, emails[i]) || emails[i].Timestamp.Before(condition.NewerThan) {
			continue
		}

		isNew, err := e.dedup.IsNew(ctx, emails[i].ID, workflow.ID)
		if err != nil {
			return protocol.Evaluation{}, fmt.Errorf("dedup lookup: %w", err)
		}

		if isNew {
			candidate = &emails[i]

			break
		}
	}

	if candidate == nil {
		return protocol.NotFired("no new emails"), nil
	}

	written, err := triggers.Claim(ctx, e.dedup, models.DedupRecord{
		EventID:     candidate.ID,
		WorkflowID:  workflow.ID,
		ProcessedAt: now,
		Sender:      candidate.From,
		Subject:     candidate.Subject,
		EventTime:   candidate.Timestamp,
	}, e.writeRetries, e.retryDelay)
	if err != nil {
		logger.WarnContext(ctx, "could not record processed email", "email_id", candidate.ID, "error", err)

		return protocol.NotFired(triggers.MessageDedupWriteFailed), nil
	}

	if !written {
		return protocol.NotFired(triggers.MessageAlreadyProcessed), nil
	}

	// Equal timestamps are possible, so the cursor trails by a second and dedup drops the overlap.
	e.cursors.Advance(workflow.ID, trigger.ID, candidate.Timestamp.Add(-time.Second))

	logger.InfoContext(ctx, "new email matched", "email_id", candidate.ID)

	return protocol.Evaluation{
		Fired:       true,
		Message:     "new email from " + candidate.From,
		TriggerData: TriggerData(trigger, *candidate),
	}, nil
}

// Matches applies the filter locally; providers may implement it only partially.
func Matches(filter *models.EmailFilter, email models.Email) bool {
	if filter.UnreadOnly && email.IsRead {
		return false
	}

	return containsFold(email.From, filter.From) &&
		containsFold(email.Subject, filter.Subject) &&
		containsFold(email.Body, filter.Body)
}

func containsFold(value, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(value), strings.ToLower(substr))
}

func TriggerData(trigger *models.Trigger, email models.Email) map[string]string {
	return map[string]string{
		"email_id":        email.ID,
		"email_from":      email.From,
		"email_subject":   email.Subject,
		"email_body":      email.Body,
		"email_timestamp": email.Timestamp.UTC().Format(time.RFC3339),
		"email_is_read":   strconv.FormatBool(email.IsRead),
		"trigger_type":    string(trigger.Kind),
		"user_id":         trigger.UserID,
	}
}
