package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
)

// QueueManager gates job starts per queue. The pool calls Acquire
// before executing a dequeued job and Release once it settles.
type QueueManager interface {
	Acquire(queue string) bool
	Release(queue string)
}

// Pool claims due timer jobs and runs them through the Executor. Each
// slot polls independently; a sleeping campaign costs nothing here until
// its wake job falls due.
//
// While a job is held the pool refreshes its heartbeat. Jobs held by a
// pool that stopped heartbeating are handed back to their queue.
type Pool struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	logger     *slog.Logger
	workerID   id.WorkerID
	now        func() time.Time

	slots        int
	queues       []string
	pollInterval time.Duration
	heartbeat    time.Duration
	staleAfter   time.Duration
	gate         QueueManager

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	heldMu sync.Mutex
	held   map[string]held
}

// held is a job a slot is currently executing.
type held struct {
	jobID  id.JobID
	cancel context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets how many jobs run at once.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.slots = n }
}

// WithPoolQueues sets the queues the pool claims from.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets how long an idle slot waits before polling again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often held jobs are heartbeated. Zero
// disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeat = d }
}

// WithStaleJobThreshold sets how old a heartbeat may get before the job
// is handed back. Zero disables the reaper.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleAfter = d }
}

// WithQueueManager gates job starts through m.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.gate = m }
}

// WithPoolNow sets the clock used to reschedule handed-back jobs. It
// must agree with the clock the store uses for due times.
func WithPoolNow(now func() time.Time) PoolOption {
	return func(p *Pool) { p.now = now }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		logger:       logger,
		workerID:     id.NewWorkerID(),
		now:          func() time.Time { return time.Now().UTC() },
		slots:        10,
		queues:       []string{job.DefaultQueue},
		pollInterval: time.Second,
		stopCh:       make(chan struct{}),
		held:         make(map[string]held),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the identity the pool heartbeats under.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Held returns how many jobs the pool is executing right now.
func (p *Pool) Held() int {
	p.heldMu.Lock()
	defer p.heldMu.Unlock()
	return len(p.held)
}

// Start launches the slots and, when configured, the heartbeat and
// reaper loops. It returns immediately and is a no-op when running.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("timer pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.slots),
		slog.Any("queues", p.queues),
	)

	for range p.slots {
		p.spawn(p.slot)
	}
	if p.heartbeat > 0 {
		p.spawn(func() { p.every(p.heartbeat, p.beat) })
	}
	if p.staleAfter > 0 {
		p.spawn(func() { p.every(p.staleAfter, p.reap) })
	}
	return nil
}

// Stop signals every loop and waits for held jobs to settle. If ctx ends
// first the held jobs are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("timer pool stopping", slog.String("worker_id", p.workerID.String()))
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("timer pool stopped")
	case <-ctx.Done():
		p.logger.Warn("timer pool shutdown timed out, cancelling held jobs",
			slog.Int("held", p.Held()),
		)
		p.cancelHeld()
		<-done
	}
	return nil
}

func (p *Pool) spawn(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

// slot claims one due job at a time until the pool stops.
func (p *Pool) slot() {
	for !p.stopped() {
		jobs, err := p.store.DequeueJobs(context.Background(), p.queues, 1)
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.idle()
			continue
		}
		if len(jobs) == 0 {
			p.idle()
			continue
		}
		p.run(jobs[0])
	}
}

// run executes j, or hands it back when its queue is throttled.
func (p *Pool) run(j *job.Job) {
	if p.gate != nil {
		if !p.gate.Acquire(j.Queue) {
			p.handBack(j, p.now().Add(p.pollInterval), "throttled")
			p.idle()
			return
		}
		defer p.gate.Release(j.Queue)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := j.ID.String()
	p.heldMu.Lock()
	p.held[key] = held{jobID: j.ID, cancel: cancel}
	p.heldMu.Unlock()
	defer func() {
		p.heldMu.Lock()
		delete(p.held, key)
		p.heldMu.Unlock()
	}()

	p.extensions.EmitJobStarted(ctx, j)
	if err := p.executor.Execute(ctx, j); err != nil {
		p.logger.Debug("timer job failed",
			slog.String("job_id", key),
			slog.String("job_name", j.Name),
			slog.String("error", err.Error()),
		)
	}
}

// handBack returns a claimed job to its queue, due at runAt.
func (p *Pool) handBack(j *job.Job, runAt time.Time, reason string) {
	j.State = job.StatePending
	j.RunAt = runAt
	j.WorkerID = id.Nil
	j.StartedAt = nil
	j.HeartbeatAt = nil

	if err := p.store.UpdateJob(context.Background(), j); err != nil {
		p.logger.Error("failed to hand back job",
			slog.String("job_id", j.ID.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("handed back job",
		slog.String("job_id", j.ID.String()),
		slog.String("reason", reason),
	)
}

// beat refreshes the heartbeat of every held job.
func (p *Pool) beat() {
	p.heldMu.Lock()
	ids := make([]id.JobID, 0, len(p.held))
	for _, h := range p.held {
		ids = append(ids, h.jobID)
	}
	p.heldMu.Unlock()

	for _, jobID := range ids {
		if err := p.store.HeartbeatJob(context.Background(), jobID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reap hands back running jobs whose heartbeat went stale.
func (p *Pool) reap() {
	stale, err := p.store.ReapStaleJobs(context.Background(), p.staleAfter)
	if err != nil {
		p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
		return
	}
	for _, j := range stale {
		p.logger.Info("reaping stale job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
		p.handBack(j, p.now(), "stale")
	}
}

// every calls fn each interval until the pool stops.
func (p *Pool) every(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (p *Pool) stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Pool) idle() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) cancelHeld() {
	p.heldMu.Lock()
	defer p.heldMu.Unlock()
	for key, h := range p.held {
		p.logger.Warn("cancelling held job", slog.String("job_id", key))
		h.cancel()
	}
}
