// Package remind provides a durable subscription-reminder engine for Go.
// A reminder campaign is a long-lived workflow that watches one
// subscription's renewal date and sends notifications at fixed offsets
// before renewal, surviving restarts and arbitrary delays between steps.
//
// Remind is a library first. Import it, configure a store and a
// notification sender, and trigger one campaign per subscription.
//
// # Quick Start
//
//	d, err := remind.New(
//	    remind.WithStore(pgStore),
//	    remind.WithOffsets(policy.Offsets{7, 5, 2, 1}),
//	)
//	eng, err := engine.Build(d, engine.WithSender(sender))
//	run, err := eng.Trigger(ctx, subscriptionID)
//
// # Architecture
//
// Each subsystem (workflow, job, dlq, subscription, notify) defines its
// own store interface. A single backend implements all of them.
//
// Sleeping campaigns hold no goroutine. A sleep step persists the run as
// sleeping and enqueues a timer job that wakes it at the deadline.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package remind
