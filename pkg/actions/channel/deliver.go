package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
)

// Deliverer sends text to forwarding destinations.
type Deliverer struct {
	Chat     protocol.ChatSender
	Email    protocol.EmailSender
	Notifier protocol.Notifier
}

// Deliver sends to every leaf of dest and returns the IDs of the messages that
// went out. Every leaf is attempted; failures are joined.
func (d Deliverer) Deliver(ctx context.Context, userID string, dest models.Destination, subject, text string) ([]string, error) {
	leaves := dest.Flatten()
	if len(leaves) == 0 {
		return nil, errors.New("destination has no targets")
	}

	var (
		sent []string
		errs []error
	)

	for _, leaf := range leaves {
		id, err := d.deliverOne(ctx, userID, leaf, subject, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", leaf.Type, leafAddress(leaf), err))

			continue
		}

		sent = append(sent, id)
	}

	return sent, errors.Join(errs...)
}

func (d Deliverer) deliverOne(ctx context.Context, userID string, dest models.Destination, subject, text string) (string, error) {
	switch dest.Type {
	case models.DestinationChat:
		if d.Chat == nil {
			return "", protocol.ErrSourceUnavailable
		}

		return d.Chat.SendChatMessage(ctx, userID, dest.Address, text)
	case models.DestinationEmail:
		if d.Email == nil {
			return "", protocol.ErrSourceUnavailable
		}

		return d.Email.SendEmail(ctx, userID, protocol.OutgoingEmail{To: dest.Address, Subject: subject, Body: text})
	case models.DestinationUser:
		if d.Notifier == nil {
			return "", protocol.ErrSourceUnavailable
		}

		recipient := dest.UserID
		if recipient == "" {
			recipient = userID
		}

		if err := d.Notifier.Notify(ctx, recipient, subject, text); err != nil {
			return "", err
		}

		return "user:" + recipient, nil
	default:
		return "", fmt.Errorf("unsupported destination type %q", dest.Type)
	}
}

func leafAddress(dest models.Destination) string {
	if dest.Type == models.DestinationUser {
		return dest.UserID
	}

	return dest.Address
}
