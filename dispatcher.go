package remind

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Storer is the lifecycle part of a store. The full store.Store lives
// in a package that imports this one.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Lifecycle is something the Dispatcher starts and stops, such as the
// timer worker pool.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ShutdownNotifier is told when the Dispatcher stops.
type ShutdownNotifier interface {
	EmitShutdown(ctx context.Context)
}

// Dispatcher owns the configuration, logger and store that reminder
// campaigns run on, and starts and stops the timer worker pool.
//
// Create one with New, then pass it to engine.Build which attaches the
// pool and the rest of the subsystems.
type Dispatcher struct {
	config Config
	logger *slog.Logger
	store  Storer

	mu       sync.Mutex
	pool     Lifecycle
	shutdown ShutdownNotifier
	started  bool
}

// New creates a Dispatcher. The resulting configuration must pass
// Config.Validate.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{config: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if err := d.config.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) Logger() *slog.Logger { return d.logger }
func (d *Dispatcher) Store() Storer        { return d.store }

// Config returns a copy of the configuration.
func (d *Dispatcher) Config() Config {
	cfg := d.config
	cfg.Offsets = d.config.Offsets.Clone()
	cfg.Queues = append([]string(nil), d.config.Queues...)
	return cfg
}

// SetPool attaches the worker pool. engine.Build calls it.
func (d *Dispatcher) SetPool(p Lifecycle) {
	d.mu.Lock()
	d.pool = p
	d.mu.Unlock()
}

// SetExtensions attaches the receiver of the shutdown event.
func (d *Dispatcher) SetExtensions(n ShutdownNotifier) {
	d.mu.Lock()
	d.shutdown = n
	d.mu.Unlock()
}

// Start starts the worker pool. Starting twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool == nil {
		return ErrNoStore
	}
	if d.started {
		return nil
	}
	if err := d.pool.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// Stop drains the worker pool, emits the shutdown event and closes the
// store. Errors from each stage are joined.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.started {
		if err := d.pool.Stop(ctx); err != nil {
			d.logger.Error("timer pool stop failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		d.started = false
	}
	if d.shutdown != nil {
		d.shutdown.EmitShutdown(ctx)
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}
