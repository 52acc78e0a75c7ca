// Package escrow is the root of an escrow transaction ledger with a durable
// asynchronous job dispatcher for its side effects.
//
// The ledger (package ledger) moves money through a strict state machine:
// pending, funded, then completed or refunded. Every side effect of a ledger
// operation (notifying counterparties, compliance checks, document
// generation, listing valuation) is enqueued as a job instead of being called
// inline, so financial correctness never depends on a collaborator being up.
//
// Jobs are dispatched through a broker-backed store when the broker answers
// its health probe, and executed synchronously in-process otherwise.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(redisStore),
//	    engine.WithFallbackStore(memory.New()),
//	    engine.WithQueues(queue.Defaults()...),
//	)
//	tasks.Register(eng.Registry(), &tasks.Handlers{Notifier: notifier, Dispatcher: eng})
//	svc := ledger.NewService(pgStore, eng)
//
// # Errors
//
// All sentinel errors live in this package. Ledger errors propagate to the
// caller; dispatch errors are retried, dead-lettered, and logged.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package escrow
