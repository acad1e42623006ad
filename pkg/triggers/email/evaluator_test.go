package email

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/mocks"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence/memory"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/ratelimit"
	"github.com/dukex/tripwire/pkg/triggers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func inbox() []models.Email {
	return []models.Email{
		{ID: "m1", From: "alice@example.com", Subject: "Lunch?", Body: "Noon works", Timestamp: base.Add(-time.Hour)},
		{ID: "m2", From: "billing@example.com", Subject: "Invoice overdue", Body: "Please pay", Timestamp: base.Add(-time.Minute)},
	}
}

func newEmailTrigger(kind models.TriggerKind, filter *models.EmailFilter) *models.Trigger {
	return &models.Trigger{ID: "t1", Kind: kind, UserID: "u1", Email: filter}
}

func newEvaluator(provider protocol.EmailProvider, c *clock) (*Evaluator, *memory.DedupRepository) {
	dedup := memory.NewDedupRepository()
	limiter := ratelimit.NewMemoryLimiter(time.Minute).WithClock(c.Now)

	return NewEvaluator(provider, dedup, limiter, log.Discard(), WithClock(c.Now), WithWriteRetries(1, time.Millisecond)), dedup
}

func TestEvaluator_FiresForMostRecentEmail(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, "u1", mock.Anything, DefaultPageSize).Return(inbox(), nil)

	c := &clock{now: base}
	evaluator, dedup := newEvaluator(provider, c)
	workflow := &models.Workflow{ID: "wf-1"}

	evaluation, err := evaluator.Evaluate(t.Context(), workflow, newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{}))
	require.NoError(t, err)
	require.True(t, evaluation.Fired)

	assert.Equal(t, map[string]string{
		"email_id":        "m2",
		"email_from":      "billing@example.com",
		"email_subject":   "Invoice overdue",
		"email_body":      "Please pay",
		"email_timestamp": "2025-02-03T09:59:00Z",
		"email_is_read":   "false",
		"trigger_type":    "new_email",
		"user_id":         "u1",
	}, evaluation.TriggerData)

	isNew, err := dedup.IsNew(t.Context(), "m2", "wf-1")
	require.NoError(t, err)
	assert.False(t, isNew, "dedup record must exist once fired")
}

func TestEvaluator_RateLimitedSkipsProvider(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	c := &clock{now: base}
	evaluator, _ := newEvaluator(provider, c)
	workflow := &models.Workflow{ID: "wf-1"}
	trigger := newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{})

	_, err := evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)

	c.Advance(30 * time.Second)

	evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Equal(t, triggers.MessageRateLimited, evaluation.Message)
	assert.InDelta(t, 30*time.Second, evaluation.RetryAfter, float64(time.Second))
	provider.AssertNumberOfCalls(t, "CheckForNewEmails", 1)
}

func TestEvaluator_IdempotentAcrossCycles(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	c := &clock{now: base}
	evaluator, _ := newEvaluator(provider, c)
	workflow := &models.Workflow{ID: "wf-1"}
	trigger := newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{})

	fired := 0

	for range 5 {
		evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
		require.NoError(t, err)

		if evaluation.Fired {
			fired++
		}

		c.Advance(2 * time.Minute)
	}

	assert.Equal(t, 1, fired, "the same inbox must fire once; older emails are behind the cursor")
}

func TestEvaluator_CursorIsPassedToProvider(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, protocol.EmailCondition{}, mock.Anything).Return(inbox(), nil).Once()
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything,
		protocol.EmailCondition{NewerThan: base.Add(-time.Minute - time.Second)}, mock.Anything).Return([]models.Email{}, nil).Once()

	c := &clock{now: base}
	evaluator, _ := newEvaluator(provider, c)
	workflow := &models.Workflow{ID: "wf-1"}
	trigger := newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{})

	_, err := evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)

	c.Advance(2 * time.Minute)

	evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
	require.NoError(t, err)
	assert.Equal(t, "no new emails", evaluation.Message)
	provider.AssertExpectations(t)
}

func TestEvaluator_FilteredEmail(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	c := &clock{now: base}
	evaluator, _ := newEvaluator(provider, c)

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"},
		newEmailTrigger(models.TriggerKindFilteredEmail, &models.EmailFilter{Subject: "lunch"}))
	require.NoError(t, err)
	require.True(t, evaluation.Fired)
	assert.Equal(t, "m1", evaluation.TriggerData["email_id"])
	assert.Equal(t, "filtered_email", evaluation.TriggerData["trigger_type"])

	_, err = evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"},
		newEmailTrigger(models.TriggerKindFilteredEmail, &models.EmailFilter{}))
	assert.ErrorIs(t, err, models.ErrInvalidTrigger)
}

func TestEvaluator_MaxAgeNarrowsCondition(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything,
		protocol.EmailCondition{UnreadOnly: true, NewerThan: base.Add(-10 * time.Minute)}, mock.Anything).Return([]models.Email{}, nil)

	c := &clock{now: base}
	evaluator, _ := newEvaluator(provider, c)

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"},
		newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{UnreadOnly: true, MaxAge: 10 * time.Minute}))
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	provider.AssertExpectations(t)
}

func TestEvaluator_SourceUnavailable(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, protocol.ErrSourceUnavailable)

	evaluator, _ := newEvaluator(provider, &clock{now: base})

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{}))
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Equal(t, triggers.MessageSourceUnavailable, evaluation.Message)
}

func TestEvaluator_DedupWriteFailureDoesNotFire(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	dedup := &mocks.MockDedupRepository{}
	dedup.On("IsNew", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	dedup.On("MarkProcessed", mock.Anything, mock.Anything).Return(false, errors.New("read-only filesystem"))

	c := &clock{now: base}
	evaluator := NewEvaluator(provider, dedup, ratelimit.NewMemoryLimiter(time.Minute).WithClock(c.Now), log.Discard(),
		WithWriteRetries(2, time.Millisecond))

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{}))
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Equal(t, triggers.MessageDedupWriteFailed, evaluation.Message)
	dedup.AssertNumberOfCalls(t, "MarkProcessed", 3)
}

func TestEvaluator_LostRaceDoesNotFire(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	dedup := &mocks.MockDedupRepository{}
	dedup.On("IsNew", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	dedup.On("MarkProcessed", mock.Anything, mock.Anything).Return(false, nil)

	evaluator := NewEvaluator(provider, dedup, ratelimit.NewMemoryLimiter(time.Minute), log.Discard())

	evaluation, err := evaluator.Evaluate(t.Context(), &models.Workflow{ID: "wf-1"}, newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{}))
	require.NoError(t, err)
	assert.False(t, evaluation.Fired)
	assert.Equal(t, triggers.MessageAlreadyProcessed, evaluation.Message)
}

func TestEvaluator_ConcurrentEvaluatorsFireOnce(t *testing.T) {
	provider := &mocks.MockEmailProvider{}
	provider.On("CheckForNewEmails", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(inbox(), nil)

	dedup := memory.NewDedupRepository()
	workflow := &models.Workflow{ID: "wf-1"}
	trigger := newEmailTrigger(models.TriggerKindNewEmail, &models.EmailFilter{})

	var (
		wg    sync.WaitGroup
		fired atomic.Int32
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// Separate evaluators stand in for separate engine processes sharing one store.
			evaluator := NewEvaluator(provider, dedup, ratelimit.NewMemoryLimiter(time.Minute), log.Discard())

			evaluation, err := evaluator.Evaluate(t.Context(), workflow, trigger)
			assert.NoError(t, err)

			if evaluation.Fired {
				fired.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
}

func TestMatches(t *testing.T) {
	email := models.Email{From: "Alice <alice@example.com>", Subject: "Quarterly REPORT", Body: "see attached", IsRead: true}

	assert.True(t, Matches(&models.EmailFilter{Subject: "report"}, email))
	assert.True(t, Matches(&models.EmailFilter{From: "ALICE", Body: "attached"}, email))
	assert.False(t, Matches(&models.EmailFilter{Subject: "invoice"}, email))
	assert.False(t, Matches(&models.EmailFilter{UnreadOnly: true}, email))
}
