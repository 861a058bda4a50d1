package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pasan-pramu/remind/policy"
)

var base = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name    string
		renewal time.Time
		want    int
	}{
		{"same instant", base, 0},
		{"ten days out", base.AddDate(0, 0, 10), 10},
		{"just under a day", base.Add(23 * time.Hour), 0},
		{"exactly one day", base.Add(24 * time.Hour), 1},
		{"one hour ago floors to -1", base.Add(-time.Hour), -1},
		{"36 hours ago floors to -2", base.Add(-36 * time.Hour), -2},
		{"exactly two days ago", base.Add(-48 * time.Hour), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.DaysUntil(tt.renewal, base))
		})
	}
}

func TestOffsetDate(t *testing.T) {
	renewal := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	got := policy.OffsetDate(renewal, 5)
	assert.Equal(t, time.Date(2026, time.February, 26, 12, 0, 0, 0, time.UTC), got)
}

func TestIsSameCalendarDay(t *testing.T) {
	a := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)
	assert.True(t, policy.IsSameCalendarDay(a, time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)))
	assert.False(t, policy.IsSameCalendarDay(a, time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)))

	// Compared in a's location.
	est := time.FixedZone("EST", -5*3600)
	assert.True(t, policy.IsSameCalendarDay(time.Date(2026, time.March, 9, 21, 0, 0, 0, est), a))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "7 days before reminder", policy.Label(7))
	assert.Equal(t, "1 days before reminder", policy.Label(1))
	assert.Equal(t, "Reminder 2 days before", policy.SleepLabel(2))
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label  string
		offset int
		ok     bool
	}{
		{"7 days before reminder", 7, true},
		{"3 days before reminder", 3, true},
		{"0 days before reminder", 0, false},
		{"-2 days before reminder", 0, false},
		{"03 days before reminder", 0, false},
		{"Reminder 2 days before", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			offset, ok := policy.ParseLabel(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.offset, offset)
		})
	}
	for _, off := range policy.DefaultOffsets() {
		got, ok := policy.ParseLabel(policy.Label(off))
		assert.True(t, ok)
		assert.Equal(t, off, got)
	}
}

func TestOffsetsValidate(t *testing.T) {
	require.NoError(t, policy.DefaultOffsets().Validate())

	bad := []policy.Offsets{
		nil,
		{},
		{7, 0},
		{5, 7},
		{7, 7, 1},
		{3, -1},
	}
	for _, o := range bad {
		assert.Error(t, o.Validate(), "offsets %v", o)
	}
}

func TestParseOffsets(t *testing.T) {
	got, err := policy.ParseOffsets(" 14, 7,3 ,1")
	require.NoError(t, err)
	assert.Equal(t, policy.Offsets{14, 7, 3, 1}, got)
	assert.Equal(t, "14,7,3,1", got.String())
	assert.Equal(t, 14, got.Max())

	_, err = policy.ParseOffsets("1,2")
	assert.Error(t, err)
	_, err = policy.ParseOffsets("seven")
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		renewal time.Time
		action  policy.Action
		offset  int
	}{
		{"three days out notifies now", base.AddDate(0, 0, 3), policy.ActionNotifyNow, 3},
		{"exactly seven days notifies now", base.AddDate(0, 0, 7), policy.ActionNotifyNow, 7},
		{"later today clamps to one", base.Add(2 * time.Hour), policy.ActionNotifyNow, 1},
		{"eight days out schedules", base.AddDate(0, 0, 8), policy.ActionSchedule, 0},
		{"ten days out schedules", base.AddDate(0, 0, 10), policy.ActionSchedule, 0},
		{"past renewal terminates", base.Add(-time.Minute), policy.ActionTerminate, 0},
		{"long past terminates", base.AddDate(0, -1, 0), policy.ActionTerminate, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(tt.renewal, base, 7)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.offset, d.Offset)
		})
	}
}

func TestDecideLabel(t *testing.T) {
	d := policy.Decide(base.AddDate(0, 0, 3), base, 7)
	assert.Equal(t, "3 days before reminder", d.Label())
	assert.Equal(t, "notify_now", d.Action.String())
}

func TestRemaining(t *testing.T) {
	renewal := base.AddDate(0, 0, 6)
	got := policy.Remaining(renewal, base, policy.DefaultOffsets())
	require.Len(t, got, 3)
	assert.Equal(t, []int{5, 2, 1}, []int{got[0].Offset, got[1].Offset, got[2].Offset})
	assert.Equal(t, "5 days before reminder", got[0].Label)
	assert.True(t, got[0].Due(base.AddDate(0, 0, 1)))
	assert.False(t, got[0].Due(base.AddDate(0, 0, 2)))
}
