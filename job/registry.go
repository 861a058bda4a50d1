package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Pasan-pramu/remind/backoff"
)

// Definition binds a job name to a handler over a decoded payload of
// type T, plus the options new jobs of that name start from.
type Definition[T any] struct {
	Name    string
	Handler func(ctx context.Context, payload T) error
	Opts    Options
}

// NewDefinition creates a Definition starting from DefaultOptions.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Definition[T]{Name: name, Handler: handler, Opts: o}
}

// HandlerFunc is a registered handler with its payload still encoded.
type HandlerFunc func(ctx context.Context, payload []byte) error

type registration struct {
	handler HandlerFunc
	opts    Options
}

// Registry maps job names to handlers. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]registration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]registration)}
}

// RegisterDefinition adds def to r, replacing any earlier definition of
// the same name. A payload that does not decode into T fails
// permanently since no retry can fix it.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	decode := func(ctx context.Context, payload []byte) error {
		var v T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &v); err != nil {
				return backoff.Permanent(fmt.Errorf("decode %s payload: %w", def.Name, err))
			}
		}
		return def.Handler(ctx, v)
	}

	r.mu.Lock()
	r.defs[def.Name] = registration{handler: decode, opts: def.Opts}
	r.mu.Unlock()
}

// Get returns the handler registered as name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d.handler, ok
}

// Options returns the options registered with name, or DefaultOptions
// for an unknown name.
func (r *Registry) Options(name string) Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.defs[name]; ok {
		return d.opts
	}
	return DefaultOptions()
}

// Names lists the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
