package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Definition names a workflow and its handler. The input is stored on
// the run as JSON and decoded into T on every activation.
type Definition[T any] struct {
	Name    string
	Handler func(wf *Workflow, input T) error
}

// NewWorkflow creates a Definition.
func NewWorkflow[T any](name string, handler func(wf *Workflow, input T) error) *Definition[T] {
	return &Definition[T]{Name: name, Handler: handler}
}

// RunnerFunc is a registered handler with its input still encoded.
type RunnerFunc func(wf *Workflow, input []byte) error

// Registry maps workflow names to handlers. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]RunnerFunc
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]RunnerFunc)}
}

// RegisterDefinition adds def to r, replacing any earlier definition of
// the same name. Empty input leaves T at its zero value.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	runner := func(wf *Workflow, input []byte) error {
		var t T
		if len(input) > 0 {
			if err := json.Unmarshal(input, &t); err != nil {
				return fmt.Errorf("unmarshal input for workflow %q: %w", def.Name, err)
			}
		}
		return def.Handler(wf, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[def.Name] = runner
}

// Get returns the runner for the given workflow name.
func (r *Registry) Get(name string) (RunnerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.runners[name]
	return fn, ok
}

// Names returns all registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
