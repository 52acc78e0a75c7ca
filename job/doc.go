// Package job defines the job record, its state machine, typed definitions,
// the handler registry and the store contract.
//
// A job moves through:
//
//	waiting → active → completed
//	waiting → active → waiting (retry after backoff) → active → ...
//	waiting → active → failed (attempts exhausted, dead-lettered)
//	active  → waiting (stall watchdog, attempt not consumed)
//	waiting → removed (cancelled before a worker claimed it)
//
// Define a job type with a typed handler; payloads are JSON:
//
//	var NotifySellerFunded = job.NewDefinition("notify-seller-funded",
//	    func(ctx context.Context, p FundedPayload) error {
//	        return notifier.Send(ctx, p.SellerID, "escrow.funded", p.Map())
//	    },
//	    job.WithQueue("notifications"),
//	)
//
// Handlers run at least once per job; a job requeued by the stall watchdog
// runs again even if the first worker finished after the requeue.
package job
