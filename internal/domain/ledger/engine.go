package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// DefaultMaxRetries bounds internal retries after a compare-and-set
// conflict before the conflict is surfaced to the caller.
const DefaultMaxRetries = 5

// errCASConflict signals a lost compare-and-set race within one attempt.
// Never escapes the engine; converted to a concurrency error after the
// retry budget is spent.
var errCASConflict = errors.New("stock compare-and-set conflict")

// MovementRequest describes one requested quantity change.
type MovementRequest struct {
	ProductID  id.ID
	LocationID id.ID
	ActorID    id.ID

	Type MovementType

	// Quantity is the positive magnitude requested.
	Quantity types.Quantity

	// Direction is required for transfer legs and is set by the transfer
	// coordinator. For in, out and adjustment it is derived from the type
	// and must be left empty.
	Direction Direction

	Notes           string
	ReferenceNumber string
}

// MovementResult is the outcome of a successfully applied movement.
type MovementResult struct {
	Record MovementRecord
	Stock  StockRecord
}

// Engine is the single component allowed to mutate stock quantities.
// It validates a request, computes the new quantity, and writes the stock
// update and the journal entry as one atomic unit.
type Engine struct {
	stock     StockStore
	journal   Journal
	products  ProductDirectory
	locations LocationDirectory
	txm       tx.Manager

	maxRetries int
}

// NewEngine creates a movement engine.
func NewEngine(
	stock StockStore,
	journal Journal,
	products ProductDirectory,
	locations LocationDirectory,
	txm tx.Manager,
) *Engine {
	return &Engine{
		stock:      stock,
		journal:    journal,
		products:   products,
		locations:  locations,
		txm:        txm,
		maxRetries: DefaultMaxRetries,
	}
}

// WithMaxRetries overrides the compare-and-set retry budget.
func (e *Engine) WithMaxRetries(n int) *Engine {
	if n > 0 {
		e.maxRetries = n
	}
	return e
}

// direction resolves the sign convention for a request.
func (r *MovementRequest) direction() (Direction, error) {
	switch r.Type {
	case TypeIn, TypeAdjustment:
		if r.Direction != "" && r.Direction != DirectionReceipt {
			return "", apperror.NewValidation(fmt.Sprintf("%s movements cannot carry direction %q", r.Type, r.Direction))
		}
		return DirectionReceipt, nil
	case TypeOut:
		if r.Direction != "" && r.Direction != DirectionExpense {
			return "", apperror.NewValidation(fmt.Sprintf("out movements cannot carry direction %q", r.Direction))
		}
		return DirectionExpense, nil
	case TypeTransfer:
		if r.Direction != DirectionReceipt && r.Direction != DirectionExpense {
			return "", apperror.NewValidation("transfer legs require an explicit direction")
		}
		return r.Direction, nil
	default:
		return "", apperror.NewValidation(fmt.Sprintf("unsupported movement type %q", r.Type))
	}
}

// validate rejects malformed requests before any storage access.
func (e *Engine) validate(req *MovementRequest) (Direction, error) {
	if !req.Type.Valid() {
		return "", apperror.NewValidation(fmt.Sprintf("unsupported movement type %q", req.Type))
	}
	if !req.Quantity.IsPositive() {
		return "", apperror.NewValidation("quantity must be positive")
	}
	if id.IsNil(req.ProductID) {
		return "", apperror.NewValidation("product_id is required")
	}
	if id.IsNil(req.LocationID) {
		return "", apperror.NewValidation("location_id is required")
	}
	if id.IsNil(req.ActorID) {
		return "", apperror.NewValidation("actor_id is required")
	}
	return req.direction()
}

// checkReferences re-checks that the product and location exist.
// The surrounding application validates these before invocation, but the
// engine must not write against ids that no longer resolve.
func (e *Engine) checkReferences(ctx context.Context, req *MovementRequest) error {
	ok, err := e.products.Exists(ctx, req.ProductID)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("product", req.ProductID)
	}

	ok, err = e.locations.Exists(ctx, req.LocationID)
	if err != nil {
		return fmt.Errorf("check location: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("location", req.LocationID)
	}
	return nil
}

// ApplyMovement atomically updates on-hand quantity and appends the
// matching journal entry.
//
// Quantity never goes negative: a movement that would drive the balance
// below zero fails with an insufficient-stock error carrying the available
// quantity, and no state is written. A compare-and-set conflict restarts
// the read-compute-write cycle up to the retry budget; afterwards the
// conflict is surfaced as retryable.
func (e *Engine) ApplyMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	dir, err := e.validate(&req)
	if err != nil {
		return nil, err
	}

	if err := e.checkReferences(ctx, &req); err != nil {
		return nil, err
	}

	delta := req.Quantity
	if dir == DirectionExpense {
		delta = delta.Neg()
	}

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		var result *MovementResult

		err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			record, err := e.stock.GetOrCreate(ctx, req.ProductID, req.LocationID)
			if err != nil {
				return fmt.Errorf("load stock record: %w", err)
			}

			previous := record.Quantity
			next := previous + delta
			if next.IsNegative() {
				return apperror.NewInsufficientStock(
					req.ProductID.String(),
					req.LocationID.String(),
					req.Quantity.Float64(),
					previous.Float64(),
				)
			}

			ok, err := e.stock.CompareAndSet(ctx, req.ProductID, req.LocationID, previous, next)
			if err != nil {
				return fmt.Errorf("compare-and-set: %w", err)
			}
			if !ok {
				// Another writer changed the quantity since it was read.
				return errCASConflict
			}

			movement := MovementRecord{
				ID:               id.New(),
				ProductID:        req.ProductID,
				LocationID:       req.LocationID,
				ActorID:          req.ActorID,
				Type:             req.Type,
				Direction:        dir,
				Quantity:         req.Quantity,
				PreviousQuantity: previous,
				NewQuantity:      next,
				Notes:            req.Notes,
				ReferenceNumber:  req.ReferenceNumber,
				CreatedAt:        time.Now().UTC(),
			}

			if err := e.journal.Append(ctx, movement); err != nil {
				return fmt.Errorf("append movement: %w", err)
			}

			record.Quantity = next
			result = &MovementResult{Record: movement, Stock: record}
			return nil
		})

		if errors.Is(err, errCASConflict) {
			logger.Debug(ctx, "movement lost compare-and-set race, retrying",
				"product_id", req.ProductID,
				"location_id", req.LocationID,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.Info(ctx, "applied stock movement",
			"movement_id", result.Record.ID,
			"type", req.Type,
			"product_id", req.ProductID,
			"location_id", req.LocationID,
			"previous", result.Record.PreviousQuantity,
			"new", result.Record.NewQuantity,
		)
		return result, nil
	}

	return nil, apperror.NewConcurrentConflict(req.ProductID.String(), req.LocationID.String()).
		WithDetail("attempts", e.maxRetries)
}

// Stock returns the current stock record for the pair. A pair with no
// movements yet reads as a zero-quantity record.
func (e *Engine) Stock(ctx context.Context, productID, locationID id.ID) (StockRecord, error) {
	return e.stock.Get(ctx, productID, locationID)
}

// History returns journal entries matching the filter, oldest first.
func (e *Engine) History(ctx context.Context, filter MovementFilter) ([]MovementRecord, error) {
	return e.journal.List(ctx, filter)
}

// ReconcileResult pairs the stored quantity with a journal replay taken
// from the same snapshot.
type ReconcileResult struct {
	Stock    StockRecord
	Replayed types.Quantity
}

// InAgreement reports whether the stored quantity matches the replay.
func (r *ReconcileResult) InAgreement() bool { return r.Stock.Quantity == r.Replayed }

// Reconcile loads the stock record and replays its journal inside one
// read-only transaction when the manager supports it, so both views come
// from a consistent snapshot. A disagreement means the journal was
// administratively corrected without a recalculation, or worse.
func (e *Engine) Reconcile(ctx context.Context, productID, locationID id.ID) (*ReconcileResult, error) {
	run := e.txm.RunInTransaction
	if ro, ok := e.txm.(tx.ReadOnlyManager); ok {
		run = ro.ReadOnly
	}

	var result ReconcileResult
	err := run(ctx, func(ctx context.Context) error {
		record, err := e.stock.Get(ctx, productID, locationID)
		if err != nil {
			return err
		}
		replayed, err := e.Replay(ctx, productID, locationID)
		if err != nil {
			return err
		}
		result = ReconcileResult{Stock: record, Replayed: replayed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Replay folds a pair's full journal from zero and returns the resulting
// quantity. Equals the stored quantity whenever ledger and journal are in
// agreement, which the atomic unit guarantees.
func (e *Engine) Replay(ctx context.Context, productID, locationID id.ID) (types.Quantity, error) {
	movements, err := e.journal.List(ctx, MovementFilter{
		ProductID:  &productID,
		LocationID: &locationID,
	})
	if err != nil {
		return 0, fmt.Errorf("list movements: %w", err)
	}

	var quantity types.Quantity
	for i := range movements {
		quantity += movements[i].SignedDelta()
	}
	return quantity, nil
}
