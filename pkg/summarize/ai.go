package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/sony/gobreaker"
)

// DefaultProbeTimeout bounds the availability check made before every generation.
const DefaultProbeTimeout = 3 * time.Second

// AIStrategy asks a local inference backend for a summary. After repeated failures
// the breaker opens and the strategy fails fast until the backend recovers.
type AIStrategy struct {
	backend      protocol.InferenceBackend
	breaker      *gobreaker.CircuitBreaker
	probeTimeout time.Duration
}

func NewAIStrategy(backend protocol.InferenceBackend, probeTimeout time.Duration, logger *slog.Logger) *AIStrategy {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	settings := gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &AIStrategy{
		backend:      backend,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		probeTimeout: probeTimeout,
	}
}

func (s *AIStrategy) Name() string { return "ai" }

// State exposes the breaker state for health reporting.
func (s *AIStrategy) State() gobreaker.State {
	return s.breaker.State()
}

func (s *AIStrategy) Summarize(ctx context.Context, text string, maxLength int, style Style) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToSummarize
	}

	return s.Generate(ctx, Prompt(text, maxLength, style))
}

// Generate runs an arbitrary prompt through the same probe and breaker.
func (s *AIStrategy) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.generate(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", protocol.ErrInferenceUnavailable, err)
	}

	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (s *AIStrategy) generate(ctx context.Context, prompt string) (string, error) {
	if s.backend == nil {
		return "", protocol.ErrInferenceUnavailable
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if err := s.backend.Available(probeCtx); err != nil {
		return "", fmt.Errorf("%w: %w", protocol.ErrInferenceUnavailable, err)
	}

	output, err := s.backend.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("inference generation: %w", err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return "", fmt.Errorf("%w: empty generation", protocol.ErrInferenceUnavailable)
	}

	return output, nil
}

// Prompt builds the summarization instruction sent to the backend.
func Prompt(text string, maxLength int, style Style) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	layout := "Write it as a single short paragraph."
	if style == StyleStructured {
		layout = "Write it as a few bullet points, one per line, each starting with \"• \"."
	}

	return fmt.Sprintf("Summarize the following text in at most %d words. %s Reply with the summary only.\n\n%s", maxLength, layout, text)
}
