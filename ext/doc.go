// Package ext defines the extension system for the job dispatcher.
//
// Extensions opt in to lifecycle events by implementing the matching hook
// interfaces:
//
//	type slowJobs struct{ log *slog.Logger }
//
//	func (s *slowJobs) Name() string { return "slow-jobs" }
//
//	func (s *slowJobs) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    if elapsed > time.Minute {
//	        s.log.Warn("slow job", slog.String("job_type", j.Type))
//	    }
//	    return nil
//	}
//
// # Hooks
//
//   - [JobEnqueued], [JobStarted], [JobCompleted]
//   - [JobRetrying] and [JobFailed] for failed attempts
//   - [JobDLQ] once an exhausted job is dead-lettered
//   - [JobStalled] when the watchdog requeues a job
//   - [ModeChanged] when the dispatcher switches broker/fallback
//   - [Shutdown]
//
// Events fire for both broker and fallback execution. The [Registry] logs
// and swallows hook errors.
package ext
