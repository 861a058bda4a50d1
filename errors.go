package remind

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("remind: no store configured")
	ErrStoreClosed     = errors.New("remind: store closed")
	ErrMigrationFailed = errors.New("remind: migration failed")

	// Not found errors.
	ErrJobNotFound          = errors.New("remind: job not found")
	ErrWorkflowNotFound     = errors.New("remind: workflow not found")
	ErrRunNotFound          = errors.New("remind: run not found")
	ErrDLQNotFound          = errors.New("remind: dlq entry not found")
	ErrSubscriptionNotFound = errors.New("remind: subscription not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("remind: job already exists")
	ErrRunAlreadyExists = errors.New("remind: run already exists")

	// State errors.
	ErrInvalidState       = errors.New("remind: invalid state transition")
	ErrMaxRetriesExceeded = errors.New("remind: max retries exceeded")
	ErrAlreadyReplayed    = errors.New("remind: dlq entry already replayed")

	// Configuration errors.
	ErrInvalidOffsets = errors.New("remind: invalid reminder offsets")
	ErrNoSender       = errors.New("remind: no notification sender configured")
)
