package escrow

import "errors"

// Ledger errors. They propagate to the API layer unchanged.
var (
	// ErrValidation reports malformed input: non-positive amounts, partial
	// funding, missing parties.
	ErrValidation = errors.New("escrow: validation failed")

	// ErrInvalidState reports an operation that is not legal for the current
	// status of an account, milestone or job.
	ErrInvalidState = errors.New("escrow: invalid state transition")

	// ErrPreconditionFailed reports a release attempted while milestones are
	// still pending.
	ErrPreconditionFailed = errors.New("escrow: precondition failed")

	// ErrConcurrencyConflict reports a writer that lost the race on an
	// escrow account.
	ErrConcurrencyConflict = errors.New("escrow: concurrency conflict")

	// ErrLedgerImbalance reports an outflow that would exceed deposits.
	ErrLedgerImbalance = errors.New("escrow: outflows exceed deposits")
)

// Dispatch errors. None of these ever fail a ledger operation.
var (
	// ErrBrokerUnavailable reports that the persistent broker could not be
	// reached. It switches the dispatcher into fallback mode.
	ErrBrokerUnavailable = errors.New("escrow: broker unavailable")

	// ErrJobExhausted is recorded when a job reaches its max attempts.
	ErrJobExhausted = errors.New("escrow: job exhausted its attempts")

	ErrUnknownQueue   = errors.New("escrow: queue not registered")
	ErrUnknownJobType = errors.New("escrow: job type not registered")

	// ErrLeaseLost reports a settle from a worker whose claim on the job was
	// taken away by the stall watchdog.
	ErrLeaseLost = errors.New("escrow: job lease lost")
)

// Store errors.
var (
	ErrNoStore         = errors.New("escrow: no store configured")
	ErrStoreClosed     = errors.New("escrow: store closed")
	ErrMigrationFailed = errors.New("escrow: migration failed")

	ErrEscrowNotFound    = errors.New("escrow: escrow account not found")
	ErrMilestoneNotFound = errors.New("escrow: milestone not found")
	ErrJobNotFound       = errors.New("escrow: job not found")
	ErrDLQNotFound       = errors.New("escrow: dlq entry not found")

	ErrJobAlreadyExists    = errors.New("escrow: job already exists")
	ErrEscrowAlreadyExists = errors.New("escrow: escrow account already exists")
)
