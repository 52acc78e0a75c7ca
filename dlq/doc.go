// Package dlq is the dead-letter view for jobs that exhausted their attempts.
// Nothing is dropped silently: the worker pushes the job's payload, final
// error and attempt counts here, where it stays until replayed or purged.
//
//	svc := dlq.NewService(store, jobStore)
//	entries, _ := svc.List(ctx, dlq.ListOpts{Queue: "notifications"})
//	replayed, _ := svc.Replay(ctx, entries[0].ID)
//
// Replay enqueues a new job with a fresh attempt budget; the failed job keeps
// its failed state. [Janitor] purges entries older than a retention window
// on a cron schedule (github.com/robfig/cron/v3 expressions).
package dlq
