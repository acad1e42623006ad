// Package channel implements actions that send or forward messages through
// external channels.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/tripwire/pkg/actions"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/dukex/tripwire/pkg/summarize"
	"github.com/dukex/tripwire/pkg/template"
)

// Forward transforms.
const (
	TransformNone      = "none"
	TransformSummarize = "summarize"
	TransformTemplate  = "template"
)

// Summarizer is satisfied by *summarize.Chain.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength int, style summarize.Style) summarize.Result
}

type Executor struct {
	deliverer  Deliverer
	summarizer Summarizer
	maxWords   int
}

func NewExecutor(deliverer Deliverer, summarizer Summarizer, maxWords int) *Executor {
	return &Executor{deliverer: deliverer, summarizer: summarizer, maxWords: maxWords}
}

func (e *Executor) Types() []models.ActionType {
	return []models.ActionType{models.ActionSendChat, models.ActionSendEmail, models.ActionReplyEmail, models.ActionForward}
}

type sendChatConfig struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendEmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type replyEmailConfig struct {
	EmailID string `json:"email_id"`
	Body    string `json:"body"`
}

type forwardConfig struct {
	Content     string             `json:"content"`
	Subject     string             `json:"subject"`
	Transform   string             `json:"transform"`
	Template    string             `json:"template"`
	MaxWords    int                `json:"max_words"`
	Style       string             `json:"style"`
	Destination models.Destination `json:"destination"`
}

func (e *Executor) Execute(ctx context.Context, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	userID, err := actions.RequireUser(execCtx)
	if err != nil {
		return protocol.ActionOutput{}, err
	}

	logger = logger.With("module", "channel_action", "action_type", action.Type)

	switch action.Type {
	case models.ActionSendChat:
		return e.sendChat(ctx, userID, action)
	case models.ActionSendEmail:
		return e.sendEmail(ctx, userID, action)
	case models.ActionReplyEmail:
		return e.replyEmail(ctx, userID, execCtx, action)
	case models.ActionForward:
		return e.forward(ctx, userID, execCtx, action, logger)
	default:
		return protocol.ActionOutput{}, fmt.Errorf("%w: channel executor cannot run %s", actions.ErrInvalidConfiguration, action.Type)
	}
}

func (e *Executor) sendChat(ctx context.Context, userID string, action models.Action) (protocol.ActionOutput, error) {
	var config sendChatConfig
	if err := actions.Decode(action, &config); err != nil {
		return protocol.ActionOutput{}, err
	}

	if err := actions.Required(action, "chat_id", config.ChatID); err != nil {
		return protocol.ActionOutput{}, err
	}

	if e.deliverer.Chat == nil {
		return protocol.ActionOutput{}, protocol.ErrSourceUnavailable
	}

	id, err := e.deliverer.Chat.SendChatMessage(ctx, userID, config.ChatID, config.Text)
	if err != nil {
		return protocol.ActionOutput{}, fmt.Errorf("send chat message: %w", err)
	}

	return protocol.ActionOutput{Value: id}, nil
}

func (e *Executor) sendEmail(ctx context.Context, userID string, action models.Action) (protocol.ActionOutput, error) {
	var config sendEmailConfig
	if err := actions.Decode(action, &config); err != nil {
		return protocol.ActionOutput{}, err
	}

	if err := actions.Required(action, "to", config.To); err != nil {
		return protocol.ActionOutput{}, err
	}

	if e.deliverer.Email == nil {
		return protocol.ActionOutput{}, protocol.ErrSourceUnavailable
	}

	id, err := e.deliverer.Email.SendEmail(ctx, userID, protocol.OutgoingEmail(config))
	if err != nil {
		return protocol.ActionOutput{}, fmt.Errorf("send email: %w", err)
	}

	return protocol.ActionOutput{Value: id}, nil
}

func (e *Executor) replyEmail(ctx context.Context, userID string, execCtx *models.ExecutionContext, action models.Action) (protocol.ActionOutput, error) {
	var config replyEmailConfig
	if err := actions.Decode(action, &config); err != nil {
		return protocol.ActionOutput{}, err
	}

	emailID := actions.FirstNonEmpty(config.EmailID, execCtx.Variables["email_id"])
	if err := actions.Required(action, "email_id", emailID); err != nil {
		return protocol.ActionOutput{}, err
	}

	if e.deliverer.Email == nil {
		return protocol.ActionOutput{}, protocol.ErrSourceUnavailable
	}

	id, err := e.deliverer.Email.ReplyToEmail(ctx, userID, emailID, config.Body)
	if err != nil {
		return protocol.ActionOutput{}, fmt.Errorf("reply to email %s: %w", emailID, err)
	}

	return protocol.ActionOutput{Value: id}, nil
}

func (e *Executor) forward(ctx context.Context, userID string, execCtx *models.ExecutionContext, action models.Action, logger *slog.Logger) (protocol.ActionOutput, error) {
	var config forwardConfig
	if err := actions.Decode(action, &config); err != nil {
		return protocol.ActionOutput{}, err
	}

	content := actions.FirstNonEmpty(config.Content, execCtx.Variables["email_body"], execCtx.Variables["message_text"])
	subject := actions.FirstNonEmpty(config.Subject, forwardSubject(execCtx.Variables["email_subject"]))

	var transformed string

	switch strings.ToLower(actions.FirstNonEmpty(config.Transform, TransformNone)) {
	case TransformNone:
		transformed = content
	case TransformSummarize:
		result := e.summarizer.Summarize(ctx, content, actions.FirstPositive(config.MaxWords, e.maxWords), summarize.ParseStyle(config.Style))
		transformed = result.Text

		logger.DebugContext(ctx, "forward summarized", "strategy", result.Strategy)
	case TransformTemplate:
		if err := actions.Required(action, "template", config.Template); err != nil {
			return protocol.ActionOutput{}, err
		}

		rendered, err := template.Render(config.Template, execCtx)
		if err != nil {
			return protocol.ActionOutput{}, fmt.Errorf("%w: %w", actions.ErrInvalidConfiguration, err)
		}

		transformed = rendered
	default:
		return protocol.ActionOutput{}, fmt.Errorf("%w: unknown transform %q", actions.ErrInvalidConfiguration, config.Transform)
	}

	sent, err := e.deliverer.Deliver(ctx, userID, config.Destination, subject, transformed)
	if err != nil && len(sent) == 0 {
		return protocol.ActionOutput{}, fmt.Errorf("forward: %w", err)
	}

	if err != nil {
		logger.WarnContext(ctx, "forward partially delivered", "delivered", len(sent), "error", err)
	}

	return protocol.ActionOutput{
		Value:     transformed,
		Variables: map[string]string{"forwarded_count": strconv.Itoa(len(sent))},
	}, nil
}

func forwardSubject(original string) string {
	if original == "" {
		return "Forwarded message"
	}

	return "Fwd: " + original
}
