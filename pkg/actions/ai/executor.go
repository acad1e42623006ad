// Package ai implements the text actions backed by local inference.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/summarize"
)

// Generator is satisfied by *summarize.AIStrategy.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength int, style summarize.Style) summarize.Result
}

type Executor struct {
	generator  Generator
	summarizer Summarizer
	maxWords   int
}

// NewExecutor builds the executor. generator may be nil, in which case every
// action except ai_summarize fails with protocol.ErrInferenceUnavailable.
func NewExecutor(generator Generator, summarizer Summarizer, maxWords int) *Executor {
	return &Executor{generator: generator, summarizer: summarizer, maxWords: maxWords}
}

func (e *Executor) Types() []models.ActionType {
	return []models.ActionType{models.ActionAIAnalyze, models.ActionAISummarize, models.ActionAITranslate, models.ActionAISmartReply}
}

type textConfig struct {
	Text           string `json:"text"`
	Instruction    string `json:"instruction"`
	TargetLanguage string `json:"target_language"`
	Tone           string `json:"tone"`
	MaxWords       int    `json:"max_words"`
	Style          string `json:"style"`
}

func (e *Executor) Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	var config textConfig
	if err := actions.Decode(action, &config); err != nil {
		return protocol.ActionOutput{}, err
	}

	text := actions.FirstNonEmpty(config.Text, execCtx.Variables["email_body"], execCtx.Variables["message_text"])
	logger = logger.With("module", "ai_action", "action_type", action.Type)

	if action.Type == models.ActionAISummarize {
		result := e.summarizer.Summarize(ctx, text, actions.FirstPositive(config.MaxWords, e.maxWords), summarize.ParseStyle(config.Style))
		logger.DebugContext(ctx, "summary produced", "strategy", result.Strategy)

		return protocol.ActionOutput{
			Value:     result.Text,
			Variables: map[string]string{"summary_strategy": result.Strategy},
		}, nil
	}

	if err := actions.Required(action, "text", text); err != nil {
		return protocol.ActionOutput{}, err
	}

	var prompt string

	switch action.Type {
	case models.ActionAIAnalyze:
		instruction := actions.FirstNonEmpty(config.Instruction,
			"Analyze the following message. State its intent, urgency (low, medium or high) and any requested action.")
		prompt = instruction + "\n\n" + text
	case models.ActionAITranslate:
		if err := actions.Required(action, "target_language", config.TargetLanguage); err != nil {
			return protocol.ActionOutput{}, err
		}

		prompt = fmt.Sprintf("Translate the following text into %s. Reply with the translation only.\n\n%s", config.TargetLanguage, text)
	case models.ActionAISmartReply:
		tone := actions.FirstNonEmpty(config.Tone, "friendly and concise")
		prompt = fmt.Sprintf("Write a %s reply to the following message. Reply with the message body only.\n\n%s", tone, text)
	default:
		return protocol.ActionOutput{}, fmt.Errorf("%w: ai executor cannot run %s", actions.ErrInvalidConfiguration, action.Type)
	}

	if e.generator == nil {
		return protocol.ActionOutput{}, protocol.ErrInferenceUnavailable
	}

	output, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return protocol.ActionOutput{}, fmt.Errorf("%s: %w", action.Type, err)
	}

	return protocol.ActionOutput{Value: strings.TrimSpace(output)}, nil
}
