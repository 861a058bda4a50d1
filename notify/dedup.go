package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DedupStore reserves notification dedup keys.
type DedupStore interface {
	// Reserve records key for ttl. It returns false when the key is
	// already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a later send may retry it.
	Release(ctx context.Context, key string) error
}

// Deduplicating wraps a Sender so each dedup key is delivered at most
// once while its reservation lives.
type Deduplicating struct {
	next   Sender
	store  DedupStore
	ttl    time.Duration
	logger *slog.Logger
}

var _ Sender = (*Deduplicating)(nil)

// Dedup wraps next with the dedup store.
func Dedup(next Sender, store DedupStore, ttl time.Duration, logger *slog.Logger) *Deduplicating {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicating{next: next, store: store, ttl: ttl, logger: logger}
}

// Send reserves msg.DedupKey and delivers msg. A key that is already
// reserved is treated as delivered. A failed delivery releases the key.
func (d *Deduplicating) Send(ctx context.Context, msg Message) error {
	if msg.DedupKey == "" {
		return d.next.Send(ctx, msg)
	}

	ok, err := d.store.Reserve(ctx, msg.DedupKey, d.ttl)
	if err != nil {
		return fmt.Errorf("notify: reserve %q: %w", msg.DedupKey, err)
	}
	if !ok {
		d.logger.Info("reminder already sent, skipping",
			slog.String("dedup_key", msg.DedupKey),
			slog.String("label", msg.Label),
		)
		return nil
	}

	if err := d.next.Send(ctx, msg); err != nil {
		if relErr := d.store.Release(ctx, msg.DedupKey); relErr != nil {
			d.logger.Warn("release dedup key failed",
				slog.String("dedup_key", msg.DedupKey),
				slog.String("error", relErr.Error()),
			)
		}
		return err
	}
	return nil
}
