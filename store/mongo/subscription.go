package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/subscription"
)

// PutSubscription upserts the user and the subscription referencing it.
func (s *Store) PutSubscription(ctx context.Context, sub *subscription.Subscription) error {
	upsert := options.UpdateOne().SetUpsert(true)
	userID := idValue(sub.User.ID)

	_, err := s.db.Collection(s.usersCol).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"name": sub.User.Name, "email": sub.User.Email}},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("remind/mongo: upsert user: %w", err)
	}

	_, err = s.db.Collection(s.subscriptionsCol).UpdateOne(ctx,
		bson.M{"_id": idValue(sub.ID)},
		bson.M{"$set": bson.M{
			"name":          sub.Name,
			"price":         sub.Price,
			"currency":      sub.Currency,
			"frequency":     sub.Frequency,
			"category":      sub.Category,
			"paymentMethod": sub.PaymentMethod,
			"status":        string(sub.Status),
			"startDate":     sub.StartDate,
			"renewalDate":   sub.RenewalDate,
			"user":          userID,
			"updatedAt":     time.Now().UTC(),
		}},
		upsert,
	)
	if err != nil {
		return fmt.Errorf("remind/mongo: upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription document.
func (s *Store) DeleteSubscription(ctx context.Context, subID string) error {
	if _, err := s.db.Collection(s.subscriptionsCol).DeleteOne(ctx, bson.M{"_id": idValue(subID)}); err != nil {
		return fmt.Errorf("remind/mongo: delete subscription: %w", err)
	}
	return nil
}

// FindByID loads a subscription with its user populated.
func (s *Store) FindByID(ctx context.Context, subID string) (*subscription.Subscription, error) {
	cur, err := s.db.Collection(s.subscriptionsCol).Aggregate(ctx, findPipeline(subID, s.usersCol))
	if err != nil {
		return nil, fmt.Errorf("remind/mongo: find subscription: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck // best-effort cursor cleanup

	if !cur.Next(ctx) {
		if cur.Err() != nil {
			return nil, fmt.Errorf("remind/mongo: find subscription: %w", cur.Err())
		}
		return nil, fmt.Errorf("%w: %s", remind.ErrSubscriptionNotFound, subID)
	}

	var doc subscriptionDoc
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("remind/mongo: decode subscription %s: %w", subID, err)
	}
	return fromSubscriptionDoc(&doc), nil
}

// findPipeline matches one subscription by id and joins its owner.
func findPipeline(subID, usersCol string) bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: idValue(subID)}}}},
		bson.D{{Key: "$limit", Value: 1}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCol},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$owner"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

// Reserve holds a dedup key until ttl elapses. A document whose expiry
// has passed but which the TTL monitor has not yet removed is taken over.
func (s *Store) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	col := s.db.Collection(colDedup)

	_, err := col.InsertOne(ctx, dedupDoc{Key: key, ExpiresAt: now.Add(ttl)})
	if err == nil {
		return true, nil
	}
	if !mongod.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("remind/mongo: reserve dedup key: %w", err)
	}

	res := col.FindOneAndUpdate(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"expires_at": now.Add(ttl)}},
	)
	if err := res.Err(); err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("remind/mongo: take over dedup key: %w", err)
	}
	return true, nil
}

// Release drops a dedup key.
func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.db.Collection(colDedup).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("remind/mongo: release dedup key: %w", err)
	}
	return nil
}
