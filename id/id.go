// Package id defines the TypeID-based identifiers used by the ledger and the
// job dispatcher.
//
// An ID renders as "prefix_suffix" ("esc_01h2x...", "job_01h2x..."). The
// suffix is a UUIDv7, so IDs of one kind sort by creation time.
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixEscrow      Prefix = "esc"
	PrefixMilestone   Prefix = "ms"
	PrefixTransaction Prefix = "etx"
	PrefixOutbox      Prefix = "obx"

	PrefixJob    Prefix = "job"
	PrefixDLQ    Prefix = "dlq"
	PrefixWorker Prefix = "wkr"
	PrefixLease  Prefix = "lease"
)

// kinds names each prefix in parse errors.
var kinds = map[Prefix]string{
	PrefixEscrow:      "escrow",
	PrefixMilestone:   "milestone",
	PrefixTransaction: "transaction",
	PrefixOutbox:      "outbox entry",
	PrefixJob:         "job",
	PrefixDLQ:         "dead-letter entry",
	PrefixWorker:      "worker",
	PrefixLease:       "lease",
}

// ID is a validated TypeID in canonical text form. The zero value is Nil.
//
//nolint:recvcheck // pointer receivers only where the ID is overwritten.
type ID struct {
	text string
}

// Nil is the zero-value ID.
var Nil ID

// Aliases document which kind an ID field holds. They are not distinct
// types; the prefix is checked when parsing.
type (
	EscrowID      = ID
	MilestoneID   = ID
	TransactionID = ID
	OutboxID      = ID
	JobID         = ID
	DLQID         = ID
	WorkerID      = ID
	LeaseID       = ID
)

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{text: tid.String()}
}

func NewEscrowID() ID      { return New(PrefixEscrow) }
func NewMilestoneID() ID   { return New(PrefixMilestone) }
func NewTransactionID() ID { return New(PrefixTransaction) }
func NewOutboxID() ID      { return New(PrefixOutbox) }
func NewJobID() ID         { return New(PrefixJob) }
func NewDLQID() ID         { return New(PrefixDLQ) }
func NewWorkerID() ID      { return New(PrefixWorker) }
func NewLeaseID() ID       { return New(PrefixLease) }

// Parse validates s as a TypeID of any prefix.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, errors.New("id: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{text: tid.String()}, nil
}

// ParseWithPrefix parses s and rejects any prefix other than expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != expected {
		return Nil, fmt.Errorf("id: %q is not a %s id (prefix %q)", s, kinds[expected], got)
	}
	return parsed, nil
}

func ParseEscrowID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixEscrow) }
func ParseMilestoneID(s string) (ID, error)   { return ParseWithPrefix(s, PrefixMilestone) }
func ParseTransactionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransaction) }
func ParseOutboxID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixOutbox) }
func ParseJobID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixJob) }
func ParseDLQID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixDLQ) }
func ParseWorkerID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixWorker) }
func ParseLeaseID(s string) (ID, error)       { return ParseWithPrefix(s, PrefixLease) }

// String returns the canonical form, or "" for Nil.
func (i ID) String() string { return i.text }

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	cut := strings.LastIndexByte(i.text, '_')
	if cut < 0 {
		return ""
	}
	return Prefix(i.text[:cut])
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return i.text == "" }

// MarshalText renders Nil as empty text.
func (i ID) MarshalText() ([]byte, error) { return []byte(i.text), nil }

// UnmarshalText decodes empty input as Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value stores Nil as NULL.
func (i ID) Value() (driver.Value, error) {
	if i.IsNil() {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.text, nil
}

// Scan accepts NULL, text and bytea columns.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
