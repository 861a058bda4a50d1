package store

import (
	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

// Store is everything the engine persists, in one backend. Migrate,
// Ping and Close come from remind.Storer.
type Store interface {
	remind.Storer

	job.Store
	workflow.Store
	dlq.Store
	subscription.Store
	notify.DedupStore
}
