// Package ledger_repo provides the PostgreSQL implementations of the
// ledger's stock store and movement journal.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const stockRecordsTable = "stock_records"

var stockColumns = []string{
	"product_id", "location_id",
	"quantity", "unit_cost", "expiry_date", "batch_number",
	"created_at", "updated_at", "last_movement_at",
}

// StockRepo implements ledger.StockStore.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.StockStore = (*StockRepo)(nil)

// NewStockRepo creates a stock record repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the record for the pair, or a zero-quantity record when the
// pair has never moved stock.
func (r *StockRepo) Get(ctx context.Context, productID, locationID id.ID) (ledger.StockRecord, error) {
	var record ledger.StockRecord

	q := r.builder.Select(stockColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{
			"product_id":  productID,
			"location_id": locationID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return record, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &record, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.StockRecord{
				ProductID:  productID,
				LocationID: locationID,
				Quantity:   0,
				UnitCost:   types.ZeroMoney(),
			}, nil
		}
		return record, fmt.Errorf("get stock record: %w", err)
	}

	return record, nil
}

// GetOrCreate returns the record for the pair, inserting it at quantity
// zero when absent. The insert is idempotent under concurrency: a racing
// creator wins and both callers read the same row.
func (r *StockRepo) GetOrCreate(ctx context.Context, productID, locationID id.ID) (ledger.StockRecord, error) {
	now := time.Now().UTC()

	q := r.builder.Insert(stockRecordsTable).
		Columns("product_id", "location_id", "quantity", "unit_cost", "created_at", "updated_at", "last_movement_at").
		Values(productID, locationID, int64(0), types.ZeroMoney(), now, now, now).
		Suffix("ON CONFLICT (product_id, location_id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return ledger.StockRecord{}, fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return ledger.StockRecord{}, fmt.Errorf("create stock record: %w", err)
	}

	var record ledger.StockRecord
	selQ := r.builder.Select(stockColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{
			"product_id":  productID,
			"location_id": locationID,
		})

	sql, args, err = selQ.ToSql()
	if err != nil {
		return record, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &record, sql, args...); err != nil {
		return record, fmt.Errorf("load stock record: %w", err)
	}

	return record, nil
}

// CompareAndSet updates the pair's quantity only if it still equals
// expected. Row locking makes concurrent updates serialize here: the
// loser's WHERE clause re-evaluates against the committed row and matches
// zero rows, which reports as a conflict.
func (r *StockRepo) CompareAndSet(ctx context.Context, productID, locationID id.ID, expected, next types.Quantity) (bool, error) {
	now := time.Now().UTC()

	q := r.builder.Update(stockRecordsTable).
		Set("quantity", next.Int64Scaled()).
		Set("updated_at", now).
		Set("last_movement_at", now).
		Where(squirrel.Eq{
			"product_id":  productID,
			"location_id": locationID,
			"quantity":    expected.Int64Scaled(),
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		// A deadlock between opposing transfers is a concurrency loss,
		// not a storage failure; surface it as retryable.
		if postgres.IsSerializationFailure(err) {
			return false, apperror.NewConcurrentConflict(productID.String(), locationID.String()).WithCause(err)
		}
		return false, fmt.Errorf("compare-and-set: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RecalculateQuantity rebuilds the stored quantity from the journal.
// Used after administrative corrections; for an untouched journal it is a
// no-op because the atomic unit keeps the two in agreement.
func (r *StockRepo) RecalculateQuantity(ctx context.Context, productID, locationID id.ID) error {
	const sql = `
		UPDATE stock_records sr
		SET quantity = COALESCE((
		        SELECT SUM(CASE WHEN m.direction = 'receipt' THEN m.quantity ELSE -m.quantity END)
		        FROM movement_records m
		        WHERE m.product_id = sr.product_id AND m.location_id = sr.location_id
		    ), 0),
		    updated_at = $3
		WHERE sr.product_id = $1 AND sr.location_id = $2
	`

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, productID, locationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recalculate quantity: %w", err)
	}
	return nil
}
