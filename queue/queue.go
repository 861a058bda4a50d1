package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config limits one queue. Zero MaxConcurrency leaves only the pool
// limit; zero RateLimit (starts per second) disables the token bucket,
// whose burst defaults to 1.
type Config struct {
	Name           string
	MaxConcurrency int
	RateLimit      float64
	RateBurst      int
}

// gate enforces one queue's Config.
type gate struct {
	max     int
	active  int
	limiter *rate.Limiter
}

func newGate(cfg Config) *gate {
	g := &gate{max: cfg.MaxConcurrency}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return g
}

// enter admits one job. The concurrency check runs first so a job
// refused for concurrency does not spend a token.
func (g *gate) enter() bool {
	if g.max > 0 && g.active >= g.max {
		return false
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return false
	}
	g.active++
	return true
}

func (g *gate) leave() {
	if g.active > 0 {
		g.active--
	}
}

// Manager admits jobs per queue. Queues it was not configured with are
// never limited. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	gates map[string]*gate
}

// NewManager creates a Manager with one gate per config.
func NewManager(configs ...Config) *Manager {
	m := &Manager{gates: make(map[string]*gate, len(configs))}
	for _, cfg := range configs {
		m.gates[cfg.Name] = newGate(cfg)
	}
	return m
}

// Acquire reports whether a job from queue may start now. After true
// the caller must Release the queue when the job settles.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[queue]
	return !ok || g.enter()
}

// Release returns the slot taken by Acquire.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[queue]; ok {
		g.leave()
	}
}

// Active returns how many admitted jobs of queue have not been released.
// Unlimited queues always report zero.
func (m *Manager) Active(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[queue]; ok {
		return g.active
	}
	return 0
}
