package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/subscription"
)

// PutSubscription stores a subscription snapshot as JSON.
func (s *Store) PutSubscription(ctx context.Context, sub *subscription.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("remind/redis: marshal subscription: %w", err)
	}
	if err := s.client.Set(ctx, subscriptionKey(sub.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("remind/redis: put subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription snapshot.
func (s *Store) DeleteSubscription(ctx context.Context, subID string) error {
	if err := s.client.Del(ctx, subscriptionKey(subID)).Err(); err != nil {
		return fmt.Errorf("remind/redis: delete subscription: %w", err)
	}
	return nil
}

// FindByID loads a subscription snapshot.
func (s *Store) FindByID(ctx context.Context, subID string) (*subscription.Subscription, error) {
	data, err := s.client.Get(ctx, subscriptionKey(subID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s", remind.ErrSubscriptionNotFound, subID)
		}
		return nil, fmt.Errorf("remind/redis: get subscription: %w", err)
	}
	var sub subscription.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("remind/redis: decode subscription %s: %w", subID, err)
	}
	return &sub, nil
}

// Reserve holds a notification dedup key for ttl with SET NX PX.
func (s *Store) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, dedupKey(key), formatTime(time.Now()), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("remind/redis: reserve dedup key: %w", err)
	}
	return ok, nil
}

// Release drops a dedup key.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, dedupKey(key)).Err(); err != nil {
		return fmt.Errorf("remind/redis: release dedup key: %w", err)
	}
	return nil
}
