package redis

const defaultPrefix = "escrow:"

type keys struct {
	prefix string
}

// job returns the Hash holding one job.
func (k keys) job(id string) string { return k.prefix + "job:" + id }

// jobIDs is the Set of every job ID, for listing.
func (k keys) jobIDs() string { return k.prefix + "job_ids" }

// jobSeq is the enqueue sequence counter.
func (k keys) jobSeq() string { return k.prefix + "job_seq" }

func (k keys) delayed(queue string) string { return k.prefix + "q:" + queue + ":delayed" }
func (k keys) ready(queue string) string   { return k.prefix + "q:" + queue + ":ready" }
func (k keys) active(queue string) string  { return k.prefix + "q:" + queue + ":active" }

// dlq is the Hash of DLQ entries keyed by entry ID.
func (k keys) dlq() string { return k.prefix + "dlq" }

// dlqByFailedAt is the Sorted Set of entry IDs scored by failure time.
func (k keys) dlqByFailedAt() string { return k.prefix + "dlq_failed_at" }
