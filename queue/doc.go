// Package queue gates timer jobs by per-queue rate and concurrency
// limits.
//
// Wake-up jobs land on the "timers" queue. When many campaigns share a
// reminder day their wake-ups come due together, and each one may send
// mail, so the pool asks the [Manager] before starting a job:
//
//	m := queue.NewManager(queue.Config{Name: "timers", RateLimit: 20, RateBurst: 40})
//	if m.Acquire(j.Queue) {
//	    defer m.Release(j.Queue)
//	    // run the job
//	}
//
// Rate limits use a token bucket from golang.org/x/time/rate. A job that
// cannot start is handed back to the store for a later poll.
package queue
