// Package dispatcher accepts the ledger's side-effect jobs.
//
// [Broker] persists jobs to the shared broker store, where the worker pools
// claim them. [Inline] is the fallback used while the broker is unreachable:
// it runs the handler synchronously through the same middleware chain and
// retries back to back. [Switch] is the façade the ledger talks to. It
// validates the queue and job type, then routes by the mode current at
// enqueue time. A [Monitor] keeps that mode in step with broker health:
//
//	sw := dispatcher.NewSwitch(broker, inline)
//	mon := dispatcher.NewMonitor(sw, redisStore, 15*time.Second)
//	_ = mon.Start(ctx)
//
//	h, err := sw.Enqueue(ctx, queue.Notifications, "notify-seller-funded", payload)
//
// Handlers are at-least-once in both modes.
package dispatcher
