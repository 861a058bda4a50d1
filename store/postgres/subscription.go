package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/subscription"
)

// PutSubscription upserts the subscription and its owner in one
// transaction.
func (s *Store) PutSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO remind_users (id, name, email) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
			sub.User.ID, sub.User.Name, sub.User.Email,
		); err != nil {
			return fmt.Errorf("remind/postgres: upsert user: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO remind_subscriptions (
				id, user_id, name, price, currency, frequency, category,
				payment_method, status, start_date, renewal_date, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			ON CONFLICT (id) DO UPDATE SET
				user_id = EXCLUDED.user_id, name = EXCLUDED.name,
				price = EXCLUDED.price, currency = EXCLUDED.currency,
				frequency = EXCLUDED.frequency, category = EXCLUDED.category,
				payment_method = EXCLUDED.payment_method, status = EXCLUDED.status,
				start_date = EXCLUDED.start_date, renewal_date = EXCLUDED.renewal_date,
				updated_at = NOW()`,
			sub.ID, sub.User.ID, sub.Name, sub.Price, sub.Currency, sub.Frequency, sub.Category,
			sub.PaymentMethod, string(sub.Status), sub.StartDate, sub.RenewalDate,
		); err != nil {
			return fmt.Errorf("remind/postgres: upsert subscription: %w", err)
		}
		return nil
	})
}

// DeleteSubscription removes a subscription. Its user is kept.
func (s *Store) DeleteSubscription(ctx context.Context, subID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM remind_subscriptions WHERE id = $1`, subID); err != nil {
		return fmt.Errorf("remind/postgres: delete subscription: %w", err)
	}
	return nil
}

// FindByID loads a subscription joined with its user.
func (s *Store) FindByID(ctx context.Context, subID string) (*subscription.Subscription, error) {
	var (
		sub    subscription.Subscription
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			s.id, s.name, s.price::float8, s.currency, s.frequency, s.category,
			s.payment_method, s.status, s.start_date, s.renewal_date,
			u.id, u.name, u.email
		FROM remind_subscriptions s
		JOIN remind_users u ON u.id = s.user_id
		WHERE s.id = $1`,
		subID,
	).Scan(
		&sub.ID, &sub.Name, &sub.Price, &sub.Currency, &sub.Frequency, &sub.Category,
		&sub.PaymentMethod, &status, &sub.StartDate, &sub.RenewalDate,
		&sub.User.ID, &sub.User.Name, &sub.User.Email,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", remind.ErrSubscriptionNotFound, subID)
		}
		return nil, fmt.Errorf("remind/postgres: find subscription: %w", err)
	}
	sub.Status = subscription.Status(status)
	return &sub, nil
}

// Reserve holds a notification dedup key until ttl elapses. An expired
// key is taken over.
func (s *Store) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	var held string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO remind_dedup (key, expires_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE remind_dedup.expires_at <= $3
		RETURNING key`,
		key, now.Add(ttl), now,
	).Scan(&held)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("remind/postgres: reserve dedup key: %w", err)
	}
	return true, nil
}

// Release drops a dedup key.
func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM remind_dedup WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remind/postgres: release dedup key: %w", err)
	}
	return nil
}
