// Package postgres implements ledger.Store on PostgreSQL using pgx/v5
// with raw SQL.
//
// Every write to an escrow runs inside InEscrowTx, which opens a
// transaction and takes the account row with SELECT ... FOR UPDATE. The
// row lock is the serialization point for the escrow across processes.
// Account updates additionally compare-and-set the version column.
//
// Schema changes are embedded SQL files applied in filename order by
// Migrate and recorded in the escrow_migrations table.
package postgres
