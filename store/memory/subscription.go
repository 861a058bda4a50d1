package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/subscription"
)

// PutSubscription inserts or replaces a subscription.
func (m *Store) PutSubscription(_ context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

// SetSubscriptionStatus changes a stored subscription's status.
func (m *Store) SetSubscriptionStatus(_ context.Context, subID string, status subscription.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[subID]
	if !ok {
		return fmt.Errorf("%w: %s", remind.ErrSubscriptionNotFound, subID)
	}
	s.Status = status
	return nil
}

// DeleteSubscription removes a subscription.
func (m *Store) DeleteSubscription(_ context.Context, subID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subID)
	return nil
}

// FindByID returns a copy of the subscription.
func (m *Store) FindByID(_ context.Context, subID string) (*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subscriptions[subID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remind.ErrSubscriptionNotFound, subID)
	}
	cp := *s
	return &cp, nil
}

// Reserve records a dedup key until ttl elapses.
func (m *Store) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.dedup[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.dedup[key] = now.Add(ttl)
	return true, nil
}

// Release forgets a dedup key.
func (m *Store) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dedup, key)
	return nil
}
