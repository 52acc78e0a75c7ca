// Package memory provides an in-memory implementation of store.Store and
// ledger.Store. It backs tests, development and the dispatcher's fallback
// mode.
package memory

import (
	"context"
	"sync"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// Ensure Store implements every subsystem contract at compile time.
var (
	_ job.Store    = (*Store)(nil)
	_ dlq.Store    = (*Store)(nil)
	_ ledger.Store = (*Store)(nil)
)

// Store is a fully in-memory store. Safe for concurrent access. Values are
// copied in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*job.Job
	jobSeq int64
	dlqs   map[string]*dlq.Entry

	escrows      map[string]*ledger.Account
	milestones   map[string]*ledger.Milestone
	byEscrow     map[string][]string // escrow ID -> milestone IDs in seq order
	transactions map[string][]*ledger.Transaction
	ledgerSeq    int64
	outbox       map[string]*ledger.OutboxEntry
	outboxOrder  []string // outbox IDs in seq order

	// locks serializes InEscrowTx per escrow account.
	locks map[string]*sync.Mutex

	// unavailable, when set, is returned by Ping and the job write paths.
	unavailable error
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:         make(map[string]*job.Job),
		dlqs:         make(map[string]*dlq.Entry),
		escrows:      make(map[string]*ledger.Account),
		milestones:   make(map[string]*ledger.Milestone),
		byEscrow:     make(map[string][]string),
		transactions: make(map[string][]*ledger.Transaction),
		outbox:       make(map[string]*ledger.OutboxEntry),
		locks:        make(map[string]*sync.Mutex),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping returns the error set with SetUnavailable, if any.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unavailable
}

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// SetUnavailable makes Ping, EnqueueJob and DequeueJobs fail with err until
// it is called again with nil. It simulates a broker outage.
func (m *Store) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = err
}
