package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Pasan-pramu/remind/subscription"
)

// subscriptionDoc mirrors a subscriptions document after the user
// $lookup has been unwound into User.
type subscriptionDoc struct {
	ID            any       `bson:"_id"`
	Name          string    `bson:"name"`
	Price         float64   `bson:"price"`
	Currency      string    `bson:"currency"`
	Frequency     string    `bson:"frequency"`
	Category      string    `bson:"category,omitempty"`
	PaymentMethod string    `bson:"paymentMethod"`
	Status        string    `bson:"status"`
	StartDate     time.Time `bson:"startDate"`
	RenewalDate   time.Time `bson:"renewalDate"`
	UserRef       any       `bson:"user"`
	User          *userDoc  `bson:"owner,omitempty"`
}

type userDoc struct {
	ID    any    `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type dedupDoc struct {
	Key       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func fromSubscriptionDoc(d *subscriptionDoc) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:            idString(d.ID),
		Name:          d.Name,
		Price:         d.Price,
		Currency:      d.Currency,
		Frequency:     d.Frequency,
		Category:      d.Category,
		PaymentMethod: d.PaymentMethod,
		Status:        subscription.Status(d.Status),
		StartDate:     d.StartDate.UTC(),
		RenewalDate:   d.RenewalDate.UTC(),
	}
	if d.User != nil {
		sub.User = subscription.User{
			ID:    idString(d.User.ID),
			Name:  d.User.Name,
			Email: d.User.Email,
		}
	} else {
		sub.User.ID = idString(d.UserRef)
	}
	return sub
}

// idValue returns the ObjectID for a 24-hex id and the raw string
// otherwise.
func idValue(raw string) any {
	if oid, err := bson.ObjectIDFromHex(raw); err == nil {
		return oid
	}
	return raw
}

// idString renders an _id of either form as a string.
func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bson.ObjectID:
		return t.Hex()
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
