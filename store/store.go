package store

import (
	"context"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Store is the broker persistence interface shared by the Broker
// dispatcher, the worker pools and the DLQ.
type Store interface {
	job.Store
	dlq.Store

	// Migrate prepares the backend (schema, scripts).
	Migrate(ctx context.Context) error

	// Ping checks connectivity. The dispatcher health monitor uses it to
	// choose between broker and fallback mode.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
