// Package engine wires all remind subsystems together and provides the
// application-level API for triggering reminder campaigns.
//
// The engine package exists to break an import cycle: the root remind
// package defines Entity (imported by job, workflow, etc.) and therefore
// cannot import those packages back. Engine sits above all subsystem
// packages and below the application layer.
//
// # Building an Engine
//
//	d, err := remind.New(
//	    remind.WithStore(pgStore),
//	    remind.WithOffsets(policy.Offsets{7, 5, 2, 1}),
//	)
//
//	eng, err := engine.Build(d,
//	    engine.WithSender(smtpSender),
//	    engine.WithExtension(audithook.New(audithook.NewSlogRecorder(logger))),
//	)
//
// # Timers
//
// The engine is the workflow runner's [workflow.Waker]. A sleeping run
// gets a "workflow.wake" job with RunAt at its deadline on the "timers"
// queue. The worker pool picks it up when due and calls Runner.Wake.
// Failed wake jobs retry with backoff and end in the DLQ.
//
// A maintenance scheduler sweeps overdue sleeping runs and purges old
// DLQ entries.
//
// # Options
//
//   - [WithSender] sets the notification sender (required)
//   - [WithSubscriptionStore] and [WithDedupStore] override the backends
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds a middleware to the wake job chain
//   - [WithBackoff] sets the wake job retry strategy
//   - [WithQueueConfig] configures per-queue rate limits and concurrency
//   - [WithTracerProvider] and [WithMeterProvider] set OpenTelemetry providers
package engine
