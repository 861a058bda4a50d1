package policy

import "time"

// Action is what a campaign should do next.
type Action int

const (
	// ActionTerminate ends the campaign without sending anything.
	ActionTerminate Action = iota
	// ActionNotifyNow sends one reminder immediately and ends the campaign.
	ActionNotifyNow
	// ActionSchedule walks the offset set, sleeping until each date.
	ActionSchedule
)

func (a Action) String() string {
	switch a {
	case ActionTerminate:
		return "terminate"
	case ActionNotifyNow:
		return "notify_now"
	case ActionSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	// Days is DaysUntil(renewal, now).
	Days int
	// Offset is the offset to notify with when Action is ActionNotifyNow.
	Offset int
}

// Label returns the reminder label for an ActionNotifyNow decision.
func (d Decision) Label() string { return Label(d.Offset) }

// Decide evaluates a renewal date against now. Within the immediate
// window (0 <= days <= window) it notifies now with offset max(days, 1).
// A renewal already past terminates. Anything further out is scheduled.
func Decide(renewal, now time.Time, window int) Decision {
	days := DaysUntil(renewal, now)
	switch {
	case days >= 0 && days <= window:
		return Decision{Action: ActionNotifyNow, Days: days, Offset: max(days, 1)}
	case renewal.Before(now):
		return Decision{Action: ActionTerminate, Days: days}
	default:
		return Decision{Action: ActionSchedule, Days: days}
	}
}

// Reminder is one pending entry of a schedule.
type Reminder struct {
	Offset int
	Date   time.Time
	Label  string
}

// Due reports whether the reminder should be sent when woken at now.
func (r Reminder) Due(now time.Time) bool {
	return IsSameCalendarDay(now, r.Date)
}

// Remaining lists the reminders of offsets whose calendar day has not
// yet passed at now, in processing order.
func Remaining(renewal, now time.Time, offsets Offsets) []Reminder {
	var out []Reminder
	for _, off := range offsets {
		date := OffsetDate(renewal, off)
		if date.After(now) || IsSameCalendarDay(now, date) {
			out = append(out, Reminder{Offset: off, Date: date, Label: Label(off)})
		}
	}
	return out
}
