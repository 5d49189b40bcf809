// Package ledger provides the stock-movement ledger core: the stock
// record store, the movement journal and the engine that mutates the two
// as one atomic unit.
package ledger

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MovementType classifies a quantity change.
type MovementType string

const (
	TypeIn         MovementType = "in"
	TypeOut        MovementType = "out"
	TypeAdjustment MovementType = "adjustment"
	TypeTransfer   MovementType = "transfer"
)

// Valid reports whether t is a supported movement type.
func (t MovementType) Valid() bool {
	switch t {
	case TypeIn, TypeOut, TypeAdjustment, TypeTransfer:
		return true
	}
	return false
}

// Direction defines the sign a movement applies to on-hand quantity.
// Receipt increases the balance, expense decreases it. For in, out and
// adjustment the direction is implied by the type; transfer legs carry it
// explicitly so the engine never special-cases transfer direction.
type Direction string

const (
	DirectionReceipt Direction = "receipt"
	DirectionExpense Direction = "expense"
)

// StockRecord holds current on-hand quantity for one product at one
// location. Exactly one record exists per (product, location) pair; it is
// created lazily at quantity zero on the first movement into the pair and
// mutated only through the engine's compare-and-set discipline.
type StockRecord struct {
	// Dimensions
	ProductID  id.ID `db:"product_id" json:"productId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	// Resources
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`

	// Optional lot attributes
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	BatchNumber *string    `db:"batch_number" json:"batchNumber,omitempty"`

	// Metadata
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
}

// MovementRecord is an immutable audit-trail entry for one quantity
// change. It is written atomically with the stock record update and never
// mutated afterwards; removal is an administrative correction outside the
// engine (see the correction service).
type MovementRecord struct {
	// ID is a UUIDv7, so journal order follows creation order.
	ID id.ID `db:"id" json:"id"`

	// Dimensions
	ProductID  id.ID `db:"product_id" json:"productId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	// ActorID is the user the change is attributed to.
	ActorID id.ID `db:"actor_id" json:"actorId"`

	Type      MovementType `db:"movement_type" json:"type"`
	Direction Direction    `db:"direction" json:"direction"`

	// Quantity is the positive magnitude of the change as applied.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// PreviousQuantity is the stock quantity observed by the successful
	// compare-and-set; NewQuantity = PreviousQuantity + SignedDelta().
	PreviousQuantity types.Quantity `db:"previous_quantity" json:"previousQuantity"`
	NewQuantity      types.Quantity `db:"new_quantity" json:"newQuantity"`

	Notes           string `db:"notes" json:"notes,omitempty"`
	ReferenceNumber string `db:"reference_number" json:"referenceNumber,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedDelta returns the quantity change with its sign.
func (m *MovementRecord) SignedDelta() types.Quantity {
	if m.Direction == DirectionExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// MovementFilter narrows journal history queries.
type MovementFilter struct {
	ProductID  *id.ID
	LocationID *id.ID
	ActorID    *id.ID
	Type       *MovementType
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
