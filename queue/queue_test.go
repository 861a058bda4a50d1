package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestUnlimitedQueue(t *testing.T) {
	m := NewManager(Config{Name: "maintenance", MaxConcurrency: 1})
	for range 10 {
		if !m.Acquire("timers") {
			t.Fatal("unconfigured queue refused a job")
		}
	}
	if got := m.Active("timers"); got != 0 {
		t.Fatalf("Active = %d, unconfigured queues are not tracked", got)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	m := NewManager(Config{Name: "timers", MaxConcurrency: 2})

	if !m.Acquire("timers") || !m.Acquire("timers") {
		t.Fatal("first two jobs should be admitted")
	}
	if m.Acquire("timers") {
		t.Fatal("third job admitted past MaxConcurrency 2")
	}
	if got := m.Active("timers"); got != 2 {
		t.Fatalf("Active = %d, want 2", got)
	}
	m.Release("timers")
	if !m.Acquire("timers") {
		t.Fatal("slot not returned by Release")
	}
}

func TestRateLimit(t *testing.T) {
	t.Run("burst then throttle", func(t *testing.T) {
		m := NewManager(Config{Name: "timers", RateLimit: 1, RateBurst: 3})
		for i := range 3 {
			if !m.Acquire("timers") {
				t.Fatalf("job %d refused within burst", i)
			}
			m.Release("timers")
		}
		if m.Acquire("timers") {
			t.Fatal("job admitted after burst was spent")
		}
	})

	t.Run("refills", func(t *testing.T) {
		m := NewManager(Config{Name: "timers", RateLimit: 20})
		if !m.Acquire("timers") {
			t.Fatal("first job refused")
		}
		m.Release("timers")
		if m.Acquire("timers") {
			t.Fatal("default burst should be 1")
		}
		time.Sleep(100 * time.Millisecond)
		if !m.Acquire("timers") {
			t.Fatal("token did not refill")
		}
	})
}

func TestConcurrencyRefusalKeepsToken(t *testing.T) {
	m := NewManager(Config{Name: "timers", MaxConcurrency: 1, RateLimit: 0.01, RateBurst: 2})

	if !m.Acquire("timers") {
		t.Fatal("first job refused")
	}
	if m.Acquire("timers") {
		t.Fatal("second job admitted past MaxConcurrency 1")
	}
	m.Release("timers")
	if !m.Acquire("timers") {
		t.Fatal("refused by concurrency must not spend the second token")
	}
}

func TestReleaseNeverUnderflows(t *testing.T) {
	m := NewManager(Config{Name: "timers", MaxConcurrency: 5})
	m.Release("timers")
	m.Release("unknown")
	if m.Active("timers") != 0 {
		t.Fatal("Active went below zero")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	const limit = 5
	m := NewManager(Config{Name: "timers", MaxConcurrency: limit})

	var inside, peak atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.Acquire("timers") {
				return
			}
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			m.Release("timers")
		}()
	}
	wg.Wait()

	if peak.Load() > limit {
		t.Fatalf("peak concurrency %d exceeded %d", peak.Load(), limit)
	}
	if m.Active("timers") != 0 {
		t.Fatalf("Active = %d after all released", m.Active("timers"))
	}
}
