// Package dlq holds timer jobs that exhausted their retries. An entry
// keeps the job's name and payload so an operator can replay it once
// the cause is fixed; a replayed wake job simply re-delivers the wake
// to a run that is still sleeping.
package dlq
