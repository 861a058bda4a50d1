// Package workflow is the durable step executor: definitions, runs,
// checkpoints, the workflow store interface, and the Runner that drives
// a run through run-steps and durable sleeps.
//
// A handler is replayed from the top on every activation. Steps that
// already have a checkpoint return their recorded result without
// running again, so a handler must be deterministic given its step
// results. Anything derived from the clock belongs inside a step.
//
// SleepUntil never blocks. It persists the run as sleeping, asks the
// Waker to schedule a wake-up, and unwinds the handler. Runner.Wake
// replays the run once the deadline has passed.
package workflow
