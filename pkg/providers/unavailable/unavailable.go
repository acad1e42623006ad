// Package unavailable provides sources and senders for channels that are not
// connected. Every call reports protocol.ErrSourceUnavailable.
package unavailable

import (
	"context"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

type Email struct{}

func (Email) CheckForNewEmails(context.Context, string, protocol.EmailCondition, int) ([]models.Email, error) {
	return nil, protocol.ErrSourceUnavailable
}

func (Email) SendEmail(context.Context, string, protocol.OutgoingEmail) (string, error) {
	return "", protocol.ErrSourceUnavailable
}

func (Email) ReplyToEmail(context.Context, string, string, string) (string, error) {
	return "", protocol.ErrSourceUnavailable
}

type Chat struct{}

func (Chat) ListMessages(context.Context, string, protocol.ChatCondition, int) ([]models.ChatMessage, error) {
	return nil, protocol.ErrSourceUnavailable
}

func (Chat) SendChatMessage(context.Context, string, string, string) (string, error) {
	return "", protocol.ErrSourceUnavailable
}

type Inference struct{}

func (Inference) Available(context.Context) error {
	return protocol.ErrInferenceUnavailable
}

func (Inference) Generate(context.Context, string) (string, error) {
	return "", protocol.ErrInferenceUnavailable
}

var (
	_ protocol.EmailProvider    = Email{}
	_ protocol.EmailSender      = Email{}
	_ protocol.ChatProvider     = Chat{}
	_ protocol.ChatSender       = Chat{}
	_ protocol.InferenceBackend = Inference{}
)
