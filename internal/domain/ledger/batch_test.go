package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/pkg/refnum"
)

func newBatchFixture(t *testing.T) (*BatchProcessor, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t)
	return NewBatchProcessor(f.engine, &refnum.MockGenerator{}), f
}

func TestProcessBatch_PartialSuccess(t *testing.T) {
	processor, f := newBatchFixture(t)
	f.stock.seed(f.productID, f.locationID, types.NewQuantity(10))

	unknownProduct := f.request(TypeIn, 5)
	unknownProduct.ProductID = id.New()

	requests := []MovementRequest{
		f.request(TypeIn, 5),      // ok: 10 -> 15
		f.request(TypeOut, 100),   // insufficient stock
		unknownProduct,            // not found
		f.request(TypeOut, 15),    // ok: 15 -> 0
	}

	result, err := processor.ProcessBatch(context.Background(), requests)
	require.NoError(t, err)

	assert.Equal(t, BatchSummary{Total: 4, Succeeded: 2, Failed: 2}, result.Summary)
	require.Len(t, result.Outcomes, 4)

	assert.False(t, result.Outcomes[0].Failed())
	assert.True(t, result.Outcomes[1].Failed())
	assert.True(t, apperror.IsInsufficientStock(result.Outcomes[1].Err))
	assert.True(t, result.Outcomes[2].Failed())
	assert.True(t, apperror.IsNotFound(result.Outcomes[2].Err))
	assert.False(t, result.Outcomes[3].Failed())

	// Successful items stay committed despite the failures in between.
	assert.Equal(t, types.Quantity(0), f.stock.quantity(f.productID, f.locationID))
	assert.Equal(t, 2, f.journal.len())
}

func TestProcessBatch_AssignsGroupReferences(t *testing.T) {
	processor, f := newBatchFixture(t)

	withOwnRef := f.request(TypeIn, 2)
	withOwnRef.ReferenceNumber = "PO-1234"

	result, err := processor.ProcessBatch(context.Background(), []MovementRequest{
		f.request(TypeIn, 1),
		withOwnRef,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Summary.Succeeded)

	// Minted group reference for the first item, caller reference kept.
	assert.Equal(t, "BLK-00001-001", result.Outcomes[0].Result.Record.ReferenceNumber)
	assert.Equal(t, "PO-1234", result.Outcomes[1].Result.Record.ReferenceNumber)
}

func TestProcessBatch_Empty(t *testing.T) {
	processor, _ := newBatchFixture(t)

	result, err := processor.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{}, result.Summary)
	assert.Empty(t, result.Outcomes)
}

func TestProcessBatch_ExceedsLimit(t *testing.T) {
	processor, f := newBatchFixture(t)
	processor.WithMaxBatchSize(2)

	requests := []MovementRequest{
		f.request(TypeIn, 1),
		f.request(TypeIn, 1),
		f.request(TypeIn, 1),
	}
	_, err := processor.ProcessBatch(context.Background(), requests)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, 0, f.journal.len())
}
