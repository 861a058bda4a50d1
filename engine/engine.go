package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/campaign"
	"github.com/Pasan-pramu/remind/cron"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
	mw "github.com/Pasan-pramu/remind/middleware"
	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/observability"
	"github.com/Pasan-pramu/remind/queue"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/worker"
	"github.com/Pasan-pramu/remind/workflow"
)

// WakeJobName is the timer job that reactivates a sleeping run.
const WakeJobName = "workflow.wake"

// Names of the maintenance tasks registered on the scheduler.
const (
	SweepTaskName    = "sweep-overdue-runs"
	PurgeDLQTaskName = "purge-dlq"
)

const instrumentationName = "github.com/Pasan-pramu/remind"

// WakePayload is the payload of a wake job. At is the deadline in Unix
// seconds the job was scheduled for.
type WakePayload struct {
	RunID string `json:"run_id"`
	At    int64  `json:"at,omitempty"`
}

// wakingKey marks a context with the key of the wake job being handled.
type wakingKey struct{}

// Engine wraps a Dispatcher with typed subsystem access.
// Use Build() to create one from a Dispatcher.
type Engine struct {
	d          *remind.Dispatcher
	extensions *ext.Registry
	registry   *job.Registry
	jobStore   job.Store
	dlqService *dlq.Service
	bo         backoff.Strategy
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger
	clock      workflow.Clock

	// Reminder subsystem.
	subs     subscription.Store
	sender   notify.Sender
	dedup    notify.DedupStore
	noDedup  bool
	campaign *campaign.Campaign

	// Workflow subsystem.
	wfRegistry *workflow.Registry
	wfRunner   *workflow.Runner

	// Maintenance subsystem.
	scheduler    *cron.Scheduler
	sweeper      *cron.Sweeper
	dlqRetention time.Duration
	purgeExpr    string
	resume       bool

	// Queue subsystem.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for wake jobs.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithSender sets the notification sender. Required.
func WithSender(s notify.Sender) Option {
	return func(eng *Engine) {
		eng.sender = s
	}
}

// WithSubscriptionStore overrides where subscriptions are read from.
// By default the dispatcher's store is used.
func WithSubscriptionStore(s subscription.Store) Option {
	return func(eng *Engine) {
		eng.subs = s
	}
}

// WithDedupStore overrides where notification dedup keys are held.
// By default the dispatcher's store is used when it implements
// notify.DedupStore.
func WithDedupStore(s notify.DedupStore) Option {
	return func(eng *Engine) {
		eng.dedup = s
	}
}

// WithoutDedup sends notifications without reserving dedup keys.
func WithoutDedup() Option {
	return func(eng *Engine) {
		eng.noDedup = true
	}
}

// WithClock sets the clock used by the workflow runner and the sweeper.
func WithClock(c workflow.Clock) Option {
	return func(eng *Engine) {
		eng.clock = c
	}
}

// WithDLQRetention sets how long dead-lettered wake jobs are kept and
// the cron expression of the purge task. Zero retention disables it.
func WithDLQRetention(retention time.Duration, schedule string) Option {
	return func(eng *Engine) {
		eng.dlqRetention = retention
		eng.purgeExpr = schedule
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Dispatcher.
// The Dispatcher's store must implement job.Store, dlq.Store and
// workflow.Store.
func Build(d *remind.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	store := d.Store()
	config := d.Config()

	if store == nil {
		return nil, remind.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("remind: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("remind: store does not implement dlq.Store")
	}
	ws, ok := store.(workflow.Store)
	if !ok {
		return nil, fmt.Errorf("remind: store does not implement workflow.Store")
	}

	eng := &Engine{
		d:            d,
		extensions:   ext.NewRegistry(logger),
		registry:     job.NewRegistry(),
		jobStore:     js,
		logger:       logger,
		clock:        workflow.SystemClock(),
		dlqRetention: 14 * 24 * time.Hour,
		purgeExpr:    "@daily",
		resume:       config.ResumeOnStart,
	}
	if ss, ok := store.(subscription.Store); ok {
		eng.subs = ss
	}
	if dd, ok := store.(notify.DedupStore); ok {
		eng.dedup = dd
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.sender == nil {
		return nil, remind.ErrNoSender
	}
	if eng.subs == nil {
		return nil, fmt.Errorf("remind: store does not implement subscription.Store")
	}
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	eng.dlqService = dlq.NewService(ds, js)
	eng.dlqService.SetNow(eng.clock.Now)

	// The campaign sends through the dedup wrapper so duplicate wake-ups
	// and replays deliver each reminder once.
	sender := eng.sender
	if eng.dedup != nil && !eng.noDedup {
		sender = notify.Dedup(sender, eng.dedup, config.DedupTTL, logger)
	}
	c, err := campaign.New(eng.subs, sender,
		campaign.WithOffsets(config.Offsets),
		campaign.WithLogger(logger),
		campaign.WithEmitter(eng.extensions),
	)
	if err != nil {
		return nil, err
	}
	eng.campaign = c

	// Workflow subsystem; the engine is the runner's timer service.
	eng.wfRegistry = workflow.NewRegistry()
	workflow.RegisterDefinition(eng.wfRegistry, c.Definition())
	eng.wfRunner = workflow.NewRunner(eng.wfRegistry, ws, eng.extensions, logger,
		workflow.WithClock(eng.clock),
		workflow.WithWaker(eng),
		workflow.WithStepRetry(backoff.Policy{
			MaxAttempts: config.StepAttempts,
			Strategy:    backoff.NewExponentialWithJitter(250*time.Millisecond, 5*time.Second),
		}),
	)

	job.RegisterDefinition(eng.registry, job.NewDefinition(WakeJobName, eng.handleWake))

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.extensions, eng.jobStore, eng.dlqService, eng.bo, logger, allMws...)
	executor.SetNow(eng.clock.Now)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
		worker.WithPoolNow(eng.clock.Now),
	}
	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(eng.jobStore, executor, eng.extensions, logger, poolOpts...)

	// Wire back into the Dispatcher.
	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	// Maintenance tasks.
	eng.scheduler = cron.NewScheduler(logger, cron.WithNow(eng.clock.Now))
	eng.sweeper = cron.NewSweeper(ws, eng, eng.extensions, config.WakeGrace, logger)
	eng.sweeper.SetNow(eng.clock.Now)
	if err := eng.scheduler.Register(SweepTaskName, config.SweepSchedule, eng.sweeper.Task()); err != nil {
		return nil, err
	}
	if eng.dlqRetention > 0 {
		if err := eng.scheduler.Register(PurgeDLQTaskName, eng.purgeExpr, cron.PurgeDLQTask(eng.dlqService, eng.dlqRetention, logger)); err != nil {
			return nil, err
		}
	}

	return eng, nil
}

// Trigger starts a reminder campaign for one subscription. The campaign
// runs until it first sleeps or finishes; the returned run reflects that
// state.
func (eng *Engine) Trigger(ctx context.Context, subscriptionID string) (*workflow.Run, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: empty subscription id", remind.ErrSubscriptionNotFound)
	}
	eng.logger.Info("triggering reminder campaign",
		slog.String("subscription_id", subscriptionID),
	)
	return workflow.Start(ctx, eng.wfRunner, campaign.Name, campaign.Input{SubscriptionID: subscriptionID})
}

// ScheduleWake enqueues a wake job for runID due at at. Scheduling the
// same deadline twice is a no-op. Asked from inside the wake job that
// holds the same deadline, it snoozes that job instead.
func (eng *Engine) ScheduleWake(ctx context.Context, runID id.RunID, at time.Time) error {
	key := wakeKey(runID, at)
	if waking, _ := ctx.Value(wakingKey{}).(string); waking == key {
		return job.Snooze(at)
	}
	payload, err := json.Marshal(WakePayload{RunID: runID.String(), At: at.Unix()})
	if err != nil {
		return fmt.Errorf("marshal wake payload: %w", err)
	}
	_, err = eng.EnqueueRaw(ctx, WakeJobName, payload,
		job.WithRunAt(at),
		job.WithKey(key),
	)
	if errors.Is(err, remind.ErrJobAlreadyExists) {
		return nil
	}
	return err
}

func wakeKey(runID id.RunID, at time.Time) string {
	return fmt.Sprintf("wake:%s:%d", runID, at.Unix())
}

// handleWake is the wake job handler.
func (eng *Engine) handleWake(ctx context.Context, p WakePayload) error {
	runID, err := id.ParseRunID(p.RunID)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("wake job: %w", err))
	}
	if p.At != 0 {
		ctx = context.WithValue(ctx, wakingKey{}, wakeKey(runID, time.Unix(p.At, 0)))
	}
	err = eng.wfRunner.Wake(ctx, runID)
	if errors.Is(err, remind.ErrRunNotFound) || errors.Is(err, remind.ErrWorkflowNotFound) {
		return backoff.Permanent(err)
	}
	return err
}

// EnqueueRaw enqueues a job with a pre-serialized payload. Options
// registered with the job's definition apply first.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	jobOpts := eng.registry.Options(name)
	for _, opt := range opts {
		opt(&jobOpts)
	}

	j := job.New(name, payload, jobOpts)
	if err := eng.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Start begins timer processing by starting the worker pool and the
// maintenance scheduler. With Config.ResumeOnStart it first resumes any
// runs left in "running" state (crash recovery).
func (eng *Engine) Start(ctx context.Context) error {
	if eng.resume {
		if resumeErr := eng.wfRunner.ResumeAll(ctx); resumeErr != nil {
			eng.logger.Warn("failed to resume workflow runs",
				slog.String("error", resumeErr.Error()),
			)
		}
	}

	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}

	return eng.d.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.d.Stop(ctx)
}

// Run returns a campaign run by ID.
func (eng *Engine) Run(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	return eng.wfRunner.Get(ctx, runID)
}

// Runs lists campaign runs.
func (eng *Engine) Runs(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	return eng.wfRunner.List(ctx, opts)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Dispatcher returns the underlying Dispatcher.
func (eng *Engine) Dispatcher() *remind.Dispatcher { return eng.d }

// DLQService returns the engine's DLQ service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// WorkflowRunner returns the workflow runner.
func (eng *Engine) WorkflowRunner() *workflow.Runner { return eng.wfRunner }

// Campaign returns the reminder campaign.
func (eng *Engine) Campaign() *campaign.Campaign { return eng.campaign }

// Scheduler returns the maintenance scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Sweeper returns the overdue-run sweeper.
func (eng *Engine) Sweeper() *cron.Sweeper { return eng.sweeper }

// QueueManager returns the queue manager, or nil if no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }
