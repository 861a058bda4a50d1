package redis

// Redis key naming conventions. All keys are prefixed with "remind:" to
// avoid collisions.

const keyPrefix = "remind:"

// ── Job keys ──

// jobKey returns the key for a job hash: remind:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// queueKey returns the due-time Sorted Set for a queue: remind:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// jobDedupKey maps a job Key to the active job holding it.
func jobDedupKey(key string) string { return keyPrefix + "job_key:" + key }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// ── Workflow keys ──

// runKey returns the key for a run hash: remind:run:{id}
func runKey(id string) string { return keyPrefix + "run:" + id }

// runIDsKey is the Set tracking all run IDs for enumeration.
const runIDsKey = keyPrefix + "run_ids"

// checkpointKey returns the key for a checkpoint: remind:checkpoint:{runID}:{step}
func checkpointKey(runID, step string) string {
	return keyPrefix + "checkpoint:" + runID + ":" + step
}

// checkpointIndexKey returns the Sorted Set of a run's step names,
// scored by save sequence.
func checkpointIndexKey(runID string) string {
	return keyPrefix + "checkpoint_idx:" + runID
}

// checkpointSeqKey is the per-run checkpoint save counter.
func checkpointSeqKey(runID string) string {
	return keyPrefix + "checkpoint_seq:" + runID
}

// ── DLQ keys ──

// dlqKey holds one entry as JSON: remind:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqFailedKey is a ZSET of entry IDs scored by failure time in ms.
const dlqFailedKey = keyPrefix + "dlq_failed"

// ── Subscription keys ──

// subscriptionKey holds a JSON subscription snapshot.
func subscriptionKey(id string) string { return keyPrefix + "subscription:" + id }

// dedupKey holds a notification dedup reservation.
func dedupKey(key string) string { return keyPrefix + "dedup:" + key }
