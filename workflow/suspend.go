package workflow

import (
	"errors"
	"fmt"
	"time"
)

// suspendError unwinds a handler that reached an unexpired sleep.
type suspendError struct {
	step   string
	wakeAt time.Time
}

func (e *suspendError) Error() string {
	return fmt.Sprintf("workflow suspended in %q until %s", e.step, e.wakeAt.Format(time.RFC3339))
}

// IsSuspended reports whether err is the signal returned by SleepUntil
// when the run was suspended. Handlers must return it unchanged.
func IsSuspended(err error) bool {
	var s *suspendError
	return errors.As(err, &s)
}

func asSuspended(err error) (*suspendError, bool) {
	var s *suspendError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

func sleepKey(name string) string { return "sleep:" + name }
