// Package smartforward implements smart_summarize_forward: pick the best keyword
// rule for the incoming content, summarize it and forward the summary.
package smartforward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/actions/channel"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/summarize"
)

type Executor struct {
	deliverer  channel.Deliverer
	summarizer channel.Summarizer
	maxWords   int
}

func NewExecutor(deliverer channel.Deliverer, summarizer channel.Summarizer, maxWords int) *Executor {
	return &Executor{deliverer: deliverer, summarizer: summarizer, maxWords: maxWords}
}

func (e *Executor) Types() []models.ActionType {
	return []models.ActionType{models.ActionSmartSummarizeForward}
}

type config struct {
	Text     string                         `json:"text"`
	Subject  string                         `json:"subject"`
	Rules    []models.KeywordForwardingRule `json:"rules"`
	MaxWords int                            `json:"max_words"`
	Style    string                         `json:"style"`
}

func (e *Executor) Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	userID, err := actions.RequireUser(execCtx)
	if err != nil {
		return protocol.ActionOutput{}, err
	}

	var cfg config
	if err := actions.Decode(action, &cfg); err != nil {
		return protocol.ActionOutput{}, err
	}

	if len(cfg.Rules) == 0 {
		return protocol.ActionOutput{}, fmt.Errorf("%w: action %s has no forwarding rules", actions.ErrInvalidConfiguration, action.ID)
	}

	subject := actions.FirstNonEmpty(cfg.Subject, execCtx.Variables["email_subject"])
	text := cfg.Text
	if text == "" {
		text = strings.TrimSpace(subject + "\n" + actions.FirstNonEmpty(execCtx.Variables["email_body"], execCtx.Variables["message_text"]))
	}

	logger = logger.With("module", "smart_forward_action", "action_id", action.ID)

	match, ok := SelectRule(cfg.Rules, text)
	if !ok {
		logger.DebugContext(ctx, "no forwarding rule matched")

		return protocol.ActionOutput{Variables: map[string]string{"matched_rule": "", "matched_keywords": ""}}, nil
	}

	result := e.summarizer.Summarize(ctx, text, actions.FirstPositive(cfg.MaxWords, e.maxWords), summarize.ParseStyle(cfg.Style))

	sent, err := e.deliverer.Deliver(ctx, userID, match.Rule.Destination, actions.FirstNonEmpty(subject, "Summary"), result.Text)
	if err != nil && len(sent) == 0 {
		return protocol.ActionOutput{}, fmt.Errorf("forward to rule %s: %w", match.Rule.ID, err)
	}

	if err != nil {
		logger.WarnContext(ctx, "summary partially delivered", "rule", match.Rule.ID, "error", err)
	}

	logger.InfoContext(ctx, "summary forwarded", "rule", match.Rule.ID, "keywords", match.Keywords, "strategy", result.Strategy)

	return protocol.ActionOutput{
		Value: result.Text,
		Variables: map[string]string{
			"matched_rule":     match.Rule.ID,
			"matched_keywords": strings.Join(match.Keywords, ","),
			"summary_strategy": result.Strategy,
		},
	}, nil
}
