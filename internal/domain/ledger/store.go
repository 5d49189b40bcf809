package ledger

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// StockStore is durable keyed storage for stock records.
// Implementations live in infrastructure/storage/postgres.
type StockStore interface {
	// Get returns the record for the pair, or a zero-quantity record if
	// none exists yet.
	Get(ctx context.Context, productID, locationID id.ID) (StockRecord, error)

	// GetOrCreate returns the record for the pair, creating it with
	// quantity 0 and unit cost 0 if absent.
	GetOrCreate(ctx context.Context, productID, locationID id.ID) (StockRecord, error)

	// CompareAndSet atomically updates quantity from expected to next.
	// Returns false without writing when another writer changed the
	// quantity since it was read. This is the primitive that detects
	// lost updates under concurrent mutation of the same pair.
	CompareAndSet(ctx context.Context, productID, locationID id.ID, expected, next types.Quantity) (bool, error)

	// RecalculateQuantity rebuilds the record's quantity from the
	// journal. Maintenance operation, used after administrative
	// corrections.
	RecalculateQuantity(ctx context.Context, productID, locationID id.ID) error
}

// Journal is the append-only store of movement records.
type Journal interface {
	// Append persists records. Must be called inside the transaction
	// that carries the matching stock update.
	Append(ctx context.Context, records ...MovementRecord) error

	// List returns history matching the filter, oldest first.
	List(ctx context.Context, filter MovementFilter) ([]MovementRecord, error)
}

// ProductDirectory is the read-only collaborator for product existence.
// The surrounding application owns product CRUD; the engine re-checks
// existence before writing.
type ProductDirectory interface {
	Exists(ctx context.Context, productID id.ID) (bool, error)
}

// LocationDirectory is the read-only collaborator for location existence.
type LocationDirectory interface {
	Exists(ctx context.Context, locationID id.ID) (bool, error)
}
