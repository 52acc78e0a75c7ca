// Package queue declares named queues and the defaults their jobs inherit:
// attempt budget, backoff curve, worker concurrency, ordering and rate
// limits.
//
//	queue.Config{
//	    Name:        queue.Compliance,
//	    Concurrency: 2,
//	    MaxAttempts: 2,
//	    Ordering:    queue.OrderPriority,
//	    Priority:    10,
//	}
//
// [Set] is the registry the dispatcher validates queue names against.
// [Manager] gates job starts with golang.org/x/time/rate token buckets and an
// active-count cap.
package queue
