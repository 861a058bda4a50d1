package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Pasan-pramu/remind/subscription"
)

func TestIDValue(t *testing.T) {
	oid := bson.NewObjectID()

	got := idValue(oid.Hex())
	require.IsType(t, bson.ObjectID{}, got)
	assert.Equal(t, oid, got)

	assert.Equal(t, "sub_123", idValue("sub_123"))
	assert.Equal(t, "zzzzzzzzzzzzzzzzzzzzzzzz", idValue("zzzzzzzzzzzzzzzzzzzzzzzz"))
}

func TestIDString(t *testing.T) {
	oid := bson.NewObjectID()
	assert.Equal(t, oid.Hex(), idString(oid))
	assert.Equal(t, "u1", idString("u1"))
	assert.Equal(t, "", idString(nil))
	assert.Equal(t, "42", idString(int32(42)))
}

func TestFromSubscriptionDoc(t *testing.T) {
	userID := bson.NewObjectID()
	renewal := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	doc := &subscriptionDoc{
		ID:            "s1",
		Name:          "Netflix",
		Price:         15.99,
		Currency:      "USD",
		Frequency:     "monthly",
		PaymentMethod: "Visa",
		Status:        "active",
		RenewalDate:   renewal,
		UserRef:       userID,
		User:          &userDoc{ID: userID, Name: "Ada", Email: "ada@example.com"},
	}

	sub := fromSubscriptionDoc(doc)
	assert.Equal(t, "s1", sub.ID)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.True(t, sub.RenewalDate.Equal(renewal))
	assert.Equal(t, subscription.User{ID: userID.Hex(), Name: "Ada", Email: "ada@example.com"}, sub.User)

	doc.User = nil
	sub = fromSubscriptionDoc(doc)
	assert.Equal(t, userID.Hex(), sub.User.ID)
	assert.Empty(t, sub.User.Email)
}

func TestFindPipeline(t *testing.T) {
	oid := bson.NewObjectID()
	p := findPipeline(oid.Hex(), "people")
	require.Len(t, p, 4)

	match := p[0].(bson.D)[0]
	assert.Equal(t, "$match", match.Key)
	assert.Equal(t, oid, match.Value.(bson.D)[0].Value)

	lookup := p[2].(bson.D)[0].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "from", Value: "people"}, lookup[0])
}
