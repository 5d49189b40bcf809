// Package tx provides transaction management abstractions.
// Domain code depends on these interfaces, never on a concrete database
// implementation.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK and nested reuse.
//
// The ledger relies on one property in particular: a nested
// RunInTransaction call joins the transaction already present in ctx.
// The transfer coordinator opens one transaction and the movement engine's
// two leg applications run inside it.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back;
	// otherwise it is committed. Nested calls reuse the existing
	// transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Use for queries that do not modify data.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
