package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, buyer_id, seller_id, agent_id, listing_id, total_amount,
	status, version, created_at, updated_at`

const milestoneColumns = `id, escrow_id, title, status, seq, completed_at, created_at`

const transactionColumns = `id, escrow_id, from_party, to_party, amount, type,
	status, reason, seq, created_at`

const outboxColumns = `id, escrow_id, queue, job_type, payload, seq, created_at, sent_at`

// ──────────────────────────────────────────────────
// Accounts and reads
// ──────────────────────────────────────────────────

// CreateEscrow inserts the account, its milestones and outbox entries in
// one transaction.
func (s *Store) CreateEscrow(ctx context.Context, a *ledger.Account, milestones []*ledger.Milestone, outbox ...*ledger.OutboxEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO escrow_accounts (`+accountColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID.String(), a.BuyerID, a.SellerID, a.AgentID, a.ListingID, a.TotalAmount,
			string(a.Status), a.Version, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return mapError("create escrow", err, nil)
		}
		for _, ms := range milestones {
			if err := insertMilestone(ctx, tx, ms); err != nil {
				return err
			}
		}
		return insertOutbox(ctx, tx, outbox)
	})
}

// GetEscrow returns the account.
func (s *Store) GetEscrow(ctx context.Context, escrowID id.EscrowID) (*ledger.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM escrow_accounts WHERE id = $1`, escrowID.String())
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapError("get escrow", err, escrow.ErrEscrowNotFound)
	}
	return a, nil
}

// GetMilestone returns the milestone.
func (s *Store) GetMilestone(ctx context.Context, milestoneID id.MilestoneID) (*ledger.Milestone, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+milestoneColumns+` FROM escrow_milestones WHERE id = $1`, milestoneID.String())
	ms, err := scanMilestone(row)
	if err != nil {
		return nil, mapError("get milestone", err, escrow.ErrMilestoneNotFound)
	}
	return ms, nil
}

// ListMilestones returns the escrow's milestones in insertion order.
func (s *Store) ListMilestones(ctx context.Context, escrowID id.EscrowID) ([]*ledger.Milestone, error) {
	if err := s.requireEscrow(ctx, escrowID); err != nil {
		return nil, err
	}
	return listMilestones(ctx, s.pool, escrowID)
}

// ListTransactions returns the escrow's transactions in insertion order.
func (s *Store) ListTransactions(ctx context.Context, escrowID id.EscrowID) ([]*ledger.Transaction, error) {
	if err := s.requireEscrow(ctx, escrowID); err != nil {
		return nil, err
	}
	return listTransactions(ctx, s.pool, escrowID)
}

// PendingOutbox returns unsent entries created at or before cutoff in seq
// order.
func (s *Store) PendingOutbox(ctx context.Context, cutoff time.Time, limit int) ([]*ledger.OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+outboxColumns+` FROM escrow_outbox
		WHERE sent_at IS NULL AND created_at <= $1
		ORDER BY seq
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, mapError("list outbox", err, nil)
	}
	defer rows.Close()

	var out []*ledger.OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, mapError("scan outbox", err, nil)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list outbox", err, nil)
	}
	return out, nil
}

// MarkOutboxSent stamps an unsent entry.
func (s *Store) MarkOutboxSent(ctx context.Context, entryID id.OutboxID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE escrow_outbox SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`,
		entryID.String(), at,
	)
	return mapError("mark outbox sent", err, nil)
}

func (s *Store) requireEscrow(ctx context.Context, escrowID id.EscrowID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM escrow_accounts WHERE id = $1)`, escrowID.String(),
	).Scan(&exists)
	if err != nil {
		return mapError("check escrow", err, nil)
	}
	if !exists {
		return escrow.ErrEscrowNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Locked writes
// ──────────────────────────────────────────────────

// InEscrowTx runs fn inside a transaction holding the account row lock.
func (s *Store) InEscrowTx(ctx context.Context, escrowID id.EscrowID, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if s.lockTimeout > 0 {
			// SET cannot take bind parameters.
			ms := strconv.FormatInt(s.lockTimeout.Milliseconds(), 10)
			if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '`+ms+`ms'`); err != nil {
				return mapError("set lock timeout", err, nil)
			}
		}

		row := tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM escrow_accounts WHERE id = $1 FOR UPDATE`, escrowID.String())
		a, err := scanAccount(row)
		if err != nil {
			return mapError("lock escrow", err, escrow.ErrEscrowNotFound)
		}

		return fn(ctx, &pgTx{tx: tx, account: a})
	})
}

// pgTx is the ledger.Tx view of one locked escrow.
type pgTx struct {
	tx      pgx.Tx
	account *ledger.Account
}

func (t *pgTx) Escrow() *ledger.Account { return t.account.Clone() }

func (t *pgTx) UpdateEscrow(ctx context.Context, a *ledger.Account) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE escrow_accounts
		SET status = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $2`,
		a.ID.String(), a.Version, string(a.Status), a.UpdatedAt,
	)
	if err != nil {
		return mapError("update escrow", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrConcurrencyConflict
	}
	a.Version++
	return nil
}

func (t *pgTx) Milestones(ctx context.Context) ([]*ledger.Milestone, error) {
	return listMilestones(ctx, t.tx, t.account.ID)
}

func (t *pgTx) AddMilestone(ctx context.Context, ms *ledger.Milestone) error {
	if ms.EscrowID.String() != t.account.ID.String() {
		return escrow.ErrValidation
	}
	return insertMilestone(ctx, t.tx, ms)
}

func (t *pgTx) UpdateMilestone(ctx context.Context, ms *ledger.Milestone) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE escrow_milestones
		SET title = $3, status = $4, completed_at = $5
		WHERE id = $1 AND escrow_id = $2`,
		ms.ID.String(), t.account.ID.String(), ms.Title, string(ms.Status), ms.CompletedAt,
	)
	if err != nil {
		return mapError("update milestone", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrMilestoneNotFound
	}
	return nil
}

func (t *pgTx) Transactions(ctx context.Context) ([]*ledger.Transaction, error) {
	return listTransactions(ctx, t.tx, t.account.ID)
}

func (t *pgTx) AppendTransactions(ctx context.Context, txs ...*ledger.Transaction) error {
	for _, tr := range txs {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO escrow_transactions
				(id, escrow_id, from_party, to_party, amount, type, status, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING seq`,
			tr.ID.String(), tr.EscrowID.String(), tr.FromParty, tr.ToParty, tr.Amount,
			string(tr.Type), tr.Status, tr.Reason, tr.CreatedAt,
		).Scan(&tr.Seq)
		if err != nil {
			return mapError("append transaction", err, nil)
		}
	}
	return nil
}

func (t *pgTx) AppendOutbox(ctx context.Context, entries ...*ledger.OutboxEntry) error {
	for _, e := range entries {
		if e.EscrowID.String() != t.account.ID.String() {
			return escrow.ErrValidation
		}
	}
	return insertOutbox(ctx, t.tx, entries)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func insertOutbox(ctx context.Context, q querier, entries []*ledger.OutboxEntry) error {
	for _, e := range entries {
		err := q.QueryRow(ctx, `
			INSERT INTO escrow_outbox (id, escrow_id, queue, job_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING seq`,
			e.ID.String(), e.EscrowID.String(), e.Queue, e.JobType, []byte(e.Payload), e.CreatedAt,
		).Scan(&e.Seq)
		if err != nil {
			return mapError("insert outbox entry", err, nil)
		}
	}
	return nil
}

func insertMilestone(ctx context.Context, q querier, ms *ledger.Milestone) error {
	err := q.QueryRow(ctx, `
		INSERT INTO escrow_milestones (id, escrow_id, title, status, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		ms.ID.String(), ms.EscrowID.String(), ms.Title, string(ms.Status), ms.CompletedAt, ms.CreatedAt,
	).Scan(&ms.Seq)
	if err != nil {
		return mapError("insert milestone", err, nil)
	}
	return nil
}

func listMilestones(ctx context.Context, q querier, escrowID id.EscrowID) ([]*ledger.Milestone, error) {
	rows, err := q.Query(ctx,
		`SELECT `+milestoneColumns+` FROM escrow_milestones WHERE escrow_id = $1 ORDER BY seq`,
		escrowID.String())
	if err != nil {
		return nil, mapError("list milestones", err, nil)
	}
	defer rows.Close()

	var out []*ledger.Milestone
	for rows.Next() {
		ms, err := scanMilestone(rows)
		if err != nil {
			return nil, mapError("scan milestone", err, nil)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list milestones", err, nil)
	}
	return out, nil
}

func listTransactions(ctx context.Context, q querier, escrowID id.EscrowID) ([]*ledger.Transaction, error) {
	rows, err := q.Query(ctx,
		`SELECT `+transactionColumns+` FROM escrow_transactions WHERE escrow_id = $1 ORDER BY seq`,
		escrowID.String())
	if err != nil {
		return nil, mapError("list transactions", err, nil)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError("scan transaction", err, nil)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list transactions", err, nil)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var (
		a      ledger.Account
		rawID  string
		status string
	)
	err := row.Scan(&rawID, &a.BuyerID, &a.SellerID, &a.AgentID, &a.ListingID, &a.TotalAmount,
		&status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.ID, err = id.ParseEscrowID(rawID); err != nil {
		return nil, fmt.Errorf("parse escrow id: %w", err)
	}
	a.Status = ledger.Status(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanMilestone(row pgx.Row) (*ledger.Milestone, error) {
	var (
		ms                 ledger.Milestone
		rawID, rawEscrowID string
		status             string
		completedAt        *time.Time
	)
	err := row.Scan(&rawID, &rawEscrowID, &ms.Title, &status, &ms.Seq, &completedAt, &ms.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ms.ID, err = id.ParseMilestoneID(rawID); err != nil {
		return nil, fmt.Errorf("parse milestone id: %w", err)
	}
	if ms.EscrowID, err = id.ParseEscrowID(rawEscrowID); err != nil {
		return nil, fmt.Errorf("parse escrow id: %w", err)
	}
	ms.Status = ledger.MilestoneStatus(status)
	if completedAt != nil {
		t := completedAt.UTC()
		ms.CompletedAt = &t
	}
	ms.CreatedAt = ms.CreatedAt.UTC()
	return &ms, nil
}

func scanOutbox(row pgx.Row) (*ledger.OutboxEntry, error) {
	var (
		e                  ledger.OutboxEntry
		rawID, rawEscrowID string
		payload            []byte
		sentAt             *time.Time
	)
	err := row.Scan(&rawID, &rawEscrowID, &e.Queue, &e.JobType, &payload, &e.Seq, &e.CreatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	if e.ID, err = id.ParseOutboxID(rawID); err != nil {
		return nil, fmt.Errorf("parse outbox id: %w", err)
	}
	if e.EscrowID, err = id.ParseEscrowID(rawEscrowID); err != nil {
		return nil, fmt.Errorf("parse escrow id: %w", err)
	}
	e.Payload = payload
	if sentAt != nil {
		t := sentAt.UTC()
		e.SentAt = &t
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var (
		tr                 ledger.Transaction
		rawID, rawEscrowID string
		txType             string
	)
	err := row.Scan(&rawID, &rawEscrowID, &tr.FromParty, &tr.ToParty, &tr.Amount, &txType,
		&tr.Status, &tr.Reason, &tr.Seq, &tr.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tr.ID, err = id.ParseTransactionID(rawID); err != nil {
		return nil, fmt.Errorf("parse transaction id: %w", err)
	}
	if tr.EscrowID, err = id.ParseEscrowID(rawEscrowID); err != nil {
		return nil, fmt.Errorf("parse escrow id: %w", err)
	}
	tr.Type = ledger.TxType(txType)
	tr.CreatedAt = tr.CreatedAt.UTC()
	return &tr, nil
}
