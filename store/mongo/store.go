package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/subscription"
)

// Collection name defaults.
const (
	colSubscriptions = "subscriptions"
	colUsers         = "users"
	colDedup         = "remind_dedup"
)

// Ensure Store implements the subsystem interfaces at compile time.
var (
	_ subscription.Store = (*Store)(nil)
	_ notify.DedupStore  = (*Store)(nil)
)

// Store is a MongoDB subscription and dedup store.
type Store struct {
	db               *mongod.Database
	subscriptionsCol string
	usersCol         string
	logger           *slog.Logger
	now              func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCollections overrides the subscriptions and users collection names.
func WithCollections(subscriptions, users string) Option {
	return func(s *Store) {
		s.subscriptionsCol = subscriptions
		s.usersCol = users
	}
}

// WithNow overrides the clock used for dedup expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store over db. The caller owns the client lifecycle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:               db,
		subscriptionsCol: colSubscriptions,
		usersCol:         colUsers,
		logger:           slog.Default(),
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates the indexes the store relies on.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range s.migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("remind/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions per collection.
func (s *Store) migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		s.subscriptionsCol: {
			{Keys: bson.D{{Key: "user", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "renewalDate", Value: 1}}},
		},
		colDedup: {
			// Expired reservations are removed by the TTL monitor.
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
	}
}
