// Package ledger is the escrow transaction ledger.
//
// An [Account] moves pending → funded → completed or refunded. Money only
// moves through append-only [Transaction] entries, and outflows (withdrawal,
// commission, refund) never exceed deposits for an escrow. Every mutating
// [Service] operation runs inside [Store.InEscrowTx], which serializes
// writers per escrow, so a concurrent release and refund cannot both win.
//
// Side effects are written to an outbox in the same unit and enqueued on a
// dispatcher after it commits. A failed enqueue is logged and never fails
// the ledger write; the entry stays pending until a [Relay] hands it over.
package ledger
