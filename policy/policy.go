package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// DaysUntil returns the whole number of days from now to renewal,
// floored, so a renewal 36 hours ago yields -2. It may be negative.
func DaysUntil(renewal, now time.Time) int {
	diff := renewal.Sub(now)
	days := int(diff / day)
	if diff < 0 && diff%day != 0 {
		days--
	}
	return days
}

// OffsetDate returns the calendar date offsetDays before renewal,
// keeping renewal's wall-clock time and location.
func OffsetDate(renewal time.Time, offsetDays int) time.Time {
	return renewal.AddDate(0, 0, -offsetDays)
}

// IsSameCalendarDay reports whether a and b fall on the same calendar
// day in a's location.
func IsSameCalendarDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Label is the reminder label for an offset, also used as the
// notification template key.
func Label(offset int) string {
	return fmt.Sprintf("%d days before reminder", offset)
}

// ParseLabel returns the offset encoded in a reminder label. It reports
// false for anything Label could not have produced.
func ParseLabel(label string) (int, bool) {
	n, ok := strings.CutSuffix(label, " days before reminder")
	if !ok {
		return 0, false
	}
	offset, err := strconv.Atoi(n)
	if err != nil || offset <= 0 || strconv.Itoa(offset) != n {
		return 0, false
	}
	return offset, true
}

// SleepLabel names the sleep step that waits for an offset's date.
func SleepLabel(offset int) string {
	return fmt.Sprintf("Reminder %d days before", offset)
}
