package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	escrow "github.com/debnit/MsmeBazaar-sub000"
)

// SQLSTATE codes mapped onto escrow sentinels.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapError translates driver errors into escrow sentinels, keeping the
// driver error in the chain.
func mapError(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case isNoRows(err) && notFound != nil:
		return notFound
	}

	switch pgCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%w: postgres: %s: %w", escrow.ErrEscrowAlreadyExists, op, err)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: postgres: %s: %w", escrow.ErrConcurrencyConflict, op, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
