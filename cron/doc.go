// Package cron runs periodic maintenance tasks on cron schedules.
//
// Schedules use standard 5-field cron expressions or descriptors such as
// "@every 1m", parsed with github.com/robfig/cron/v3.
//
// # Sweeper
//
// A sleeping run normally wakes through the timer job enqueued when it
// suspended. If the process dies after the run is persisted as sleeping
// but before the job is written, that wake-up is lost. The [Sweeper]
// lists sleeping runs overdue by more than a grace period and schedules
// a new wake-up for each. Duplicate wake-ups are harmless: only one
// activation can claim a sleeping run.
//
// # DLQ purge
//
// [PurgeDLQTask] drops dead-lettered timer jobs past a retention age.
package cron
