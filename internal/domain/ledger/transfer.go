package ledger

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
	"stockledger/pkg/refnum"
)

// TransferRequest moves quantity of one product between two locations.
type TransferRequest struct {
	ProductID      id.ID
	FromLocationID id.ID
	ToLocationID   id.ID
	ActorID        id.ID
	Quantity       types.Quantity
	Notes          string
}

// TransferResult carries both legs of a completed transfer.
// The legs share one minted reference number (with -OUT / -IN suffixes)
// so audit queries can group them.
type TransferResult struct {
	ReferenceNumber string
	Debit           MovementRecord
	Credit          MovementRecord
}

// Coordinator composes two engine calls into one logical, atomic
// transfer: debit the source, credit the destination, inside a single
// enclosing transaction. If the destination leg fails, the source leg's
// writes roll back with it.
type Coordinator struct {
	engine  *Engine
	txm     tx.Manager
	refnums refnum.Generator
	refCfg  refnum.Config
}

// NewCoordinator creates a transfer coordinator.
func NewCoordinator(engine *Engine, txm tx.Manager, refnums refnum.Generator) *Coordinator {
	return &Coordinator{
		engine:  engine,
		txm:     txm,
		refnums: refnums,
		refCfg:  refnum.DefaultConfig("TRF"),
	}
}

// Transfer debits the source location and credits the destination as one
// atomic unit. Insufficient stock at the source surfaces from the first
// leg before the destination leg is attempted.
func (c *Coordinator) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.FromLocationID == req.ToLocationID {
		return nil, apperror.NewValidation("transfer requires distinct source and destination locations")
	}
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive")
	}

	// Reference numbers are minted outside the business transaction;
	// a rolled-back transfer burns a number, it never reuses one.
	ref, err := c.refnums.Next(ctx, c.refCfg, nil, time.Now())
	if err != nil {
		return nil, fmt.Errorf("mint reference number: %w", err)
	}

	result := &TransferResult{ReferenceNumber: ref}

	err = c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		debit, err := c.engine.ApplyMovement(ctx, MovementRequest{
			ProductID:       req.ProductID,
			LocationID:      req.FromLocationID,
			ActorID:         req.ActorID,
			Type:            TypeTransfer,
			Direction:       DirectionExpense,
			Quantity:        req.Quantity,
			Notes:           req.Notes,
			ReferenceNumber: ref + "-OUT",
		})
		if err != nil {
			return fmt.Errorf("debit leg: %w", err)
		}

		credit, err := c.engine.ApplyMovement(ctx, MovementRequest{
			ProductID:       req.ProductID,
			LocationID:      req.ToLocationID,
			ActorID:         req.ActorID,
			Type:            TypeTransfer,
			Direction:       DirectionReceipt,
			Quantity:        req.Quantity,
			Notes:           req.Notes,
			ReferenceNumber: ref + "-IN",
		})
		if err != nil {
			return fmt.Errorf("credit leg: %w", err)
		}

		result.Debit = debit.Record
		result.Credit = credit.Record
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "completed stock transfer",
		"reference", ref,
		"product_id", req.ProductID,
		"from", req.FromLocationID,
		"to", req.ToLocationID,
		"quantity", req.Quantity,
	)
	return result, nil
}
