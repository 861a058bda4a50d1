// Package notify defines the notification sender a reminder campaign
// calls into, the message it sends, label-keyed email templates, and a
// de-duplicating sender that makes a send idempotent per occasion.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/subscription"
)

var (
	// ErrMissingRecipient is returned when a message has no recipient.
	ErrMissingRecipient = errors.New("notify: missing recipient")
	// ErrMissingLabel is returned when a message has no reminder label.
	ErrMissingLabel = errors.New("notify: missing reminder label")
	// ErrUnknownLabel is returned when no template matches a label.
	ErrUnknownLabel = errors.New("notify: unknown reminder label")
)

// Message is one reminder to deliver.
type Message struct {
	ID           id.NotificationID
	Recipient    string
	Label        string
	DedupKey     string
	Subscription *subscription.Subscription
}

// NewMessage builds a reminder message for sub under label. The dedup
// key is derived from the occasion: subscription, renewal day and label.
func NewMessage(sub *subscription.Subscription, label string) Message {
	return Message{
		ID:           id.NewNotificationID(),
		Recipient:    sub.User.Email,
		Label:        label,
		DedupKey:     DedupKey(sub.ID, sub.RenewalDate, label),
		Subscription: sub,
	}
}

// DedupKey identifies one reminder occasion.
func DedupKey(subscriptionID string, renewal time.Time, label string) string {
	return fmt.Sprintf("%s:%s:%s", subscriptionID, renewal.UTC().Format(time.DateOnly), label)
}

// Validate checks the fields every sender relies on.
func (m Message) Validate() error {
	if m.Recipient == "" {
		return ErrMissingRecipient
	}
	if m.Label == "" {
		return ErrMissingLabel
	}
	if m.Subscription == nil {
		return errors.New("notify: missing subscription")
	}
	return nil
}

// Sender delivers reminder messages. A nil error means the message was
// accepted for delivery; any error is a failed send.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f(ctx, msg).
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
