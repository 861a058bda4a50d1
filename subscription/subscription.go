// Package subscription defines the read-only subscription snapshot a
// reminder campaign consumes and the store contract it is loaded from.
package subscription

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// User is the denormalized owner of a subscription.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Subscription is a snapshot of one subscription. Campaigns re-read it
// at start and after every sleep; a held copy is stale.
type Subscription struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Frequency     string    `json:"frequency"`
	Category      string    `json:"category,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	Status        Status    `json:"status"`
	StartDate     time.Time `json:"start_date"`
	RenewalDate   time.Time `json:"renewal_date"`
	User          User      `json:"user"`
}

// IsActive reports whether reminders should still be sent.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// PriceLabel renders "USD 9.99 (monthly)".
func (s *Subscription) PriceLabel() string {
	return fmt.Sprintf("%s %.2f (%s)", s.Currency, s.Price, s.Frequency)
}

// Store loads subscription snapshots.
type Store interface {
	// FindByID returns the subscription with its user populated, or an
	// error wrapping remind.ErrSubscriptionNotFound.
	FindByID(ctx context.Context, id string) (*Subscription, error)
}
