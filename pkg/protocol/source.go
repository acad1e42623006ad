package protocol

import (
	"context"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

// EmailCondition is the server-side filter an email provider applies.
type EmailCondition struct {
	UnreadOnly bool
	From       string
	Subject    string
	Body       string
	NewerThan  time.Time
}

// EmailProvider returns recent emails for a user, newest first.
type EmailProvider interface {
	CheckForNewEmails(ctx context.Context, userID string, condition EmailCondition, limit int) ([]models.Email, error)
}

// ChatCondition is the filter a chat provider applies.
type ChatCondition struct {
	Contains      string
	CommandPrefix string
	ChatID        string
	NewerThan     time.Time
}

// ChatProvider returns recent chat messages for a user, newest first.
type ChatProvider interface {
	ListMessages(ctx context.Context, userID string, condition ChatCondition, limit int) ([]models.ChatMessage, error)
}

// OutgoingEmail is a message handed to an EmailSender.
type OutgoingEmail struct {
	To      string
	Subject string
	Body    string
}

type ChatSender interface {
	SendChatMessage(ctx context.Context, userID, chatID, text string) (string, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, userID string, email OutgoingEmail) (string, error)
	ReplyToEmail(ctx context.Context, userID, emailID, body string) (string, error)
}

// Notifier delivers in-system notifications to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string) error
}

// InferenceBackend is a local text-generation model.
type InferenceBackend interface {
	Available(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
}
