// Package engine wires the dispatch subsystem together. It owns the job
// registry, the queue declarations and the middleware chain, one worker
// pool per queue, and the broker/fallback dispatcher with its health
// monitor.
//
// It sits above every subsystem package and below the application layer,
// so the root escrow package never has to import them back.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithStore(redisStore),
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	)
//
// Queues default to [queue.Defaults]; [WithQueues] replaces them.
//
// # Registering and enqueuing
//
//	var SendReceipt = job.NewDefinition("send-receipt",
//	    func(ctx context.Context, in Receipt) error { ... },
//	    job.WithQueue(queue.Notifications),
//	)
//
//	engine.Register(eng, SendReceipt)
//	h, err := engine.Enqueue(ctx, eng, SendReceipt, Receipt{EscrowID: "esc_..."})
//
// The Engine itself satisfies [dispatcher.Dispatcher], so it can be handed
// to the ledger directly.
//
// # Options
//
//   - [WithStore] sets the broker store (required)
//   - [WithFallbackStore] sets the store used while the broker is down
//   - [WithQueues] declares queues
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] appends execution middleware
//   - [WithTracerProvider] and [WithMeterProvider] set OpenTelemetry providers
package engine
