// Package summarize turns arbitrary text into a short summary through a chain of
// strategies that degrade from local inference to extraction to truncation.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// DefaultMaxLength is the target summary length in words.
const DefaultMaxLength = 60

// Style selects the output layout.
type Style string

const (
	StylePlain      Style = "plain"
	StyleStructured Style = "structured"
)

// ParseStyle maps free-form configuration to a Style, defaulting to plain.
func ParseStyle(raw string) Style {
	if Style(strings.ToLower(strings.TrimSpace(raw))) == StyleStructured {
		return StyleStructured
	}

	return StylePlain
}

var ErrNothingToSummarize = errors.New("nothing to summarize")

// Strategy produces a summary of at most maxLength words, or an error.
type Strategy interface {
	Name() string
	Summarize(ctx context.Context, text string, maxLength int, style Style) (string, error)
}

// Result is a chain outcome and the strategy that produced it.
type Result struct {
	Text     string
	Strategy string
}

// Chain tries its strategies in order. Summarize never fails.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
	observe    func(strategy string)
}

// NewChain builds a chain; the emergency strategy is always appended as the last resort.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: append(slices.Clone(strategies), EmergencyStrategy{}),
		logger:     logger.With("module", "summarize"),
	}
}

// NewDefaultChain is AI, then extractive, then emergency. ai may be nil.
func NewDefaultChain(ai *AIStrategy, logger *slog.Logger) *Chain {
	if ai == nil {
		return NewChain(logger, ExtractiveStrategy{})
	}

	return NewChain(logger, ai, ExtractiveStrategy{})
}

// OnResult registers a callback invoked with the name of every winning strategy.
func (c *Chain) OnResult(observe func(strategy string)) *Chain {
	c.observe = observe

	return c
}

func (c *Chain) Summarize(ctx context.Context, text string, maxLength int, style Style) Result {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	limit := maxLength + maxLength/2

	for _, strategy := range c.strategies {
		summary, err := c.try(ctx, strategy, text, maxLength, style)
		if err != nil {
			c.logger.DebugContext(ctx, "summary strategy failed", "strategy", strategy.Name(), "error", err)

			continue
		}

		summary = strings.TrimSpace(summary)
		if summary == "" {
			continue
		}

		if c.observe != nil {
			c.observe(strategy.Name())
		}

		return Result{Text: clampWords(summary, limit), Strategy: strategy.Name()}
	}

	// Only reachable when the emergency strategy itself panicked.
	return Result{Text: emptyPlaceholder, Strategy: "none"}
}

func (c *Chain) try(ctx context.Context, strategy Strategy, text string, maxLength int, style Style) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "summary strategy panicked", "strategy", strategy.Name(), "panic", r)
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()

	return strategy.Summarize(ctx, text, maxLength, style)
}

func clampWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}

	return strings.Join(words[:limit], " ") + ellipsis
}
