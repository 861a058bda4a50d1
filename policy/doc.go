// Package policy holds the reminder policy: pure functions that map a
// renewal date and an explicit "now" to day counts, reminder dates and
// the next decision a campaign should take. Nothing here reads the
// clock or performs I/O.
package policy
