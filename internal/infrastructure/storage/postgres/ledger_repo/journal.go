package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementRecordsTable = "movement_records"

var movementColumns = []string{
	"id", "product_id", "location_id", "actor_id",
	"movement_type", "direction", "quantity",
	"previous_quantity", "new_quantity",
	"notes", "reference_number", "created_at",
}

// JournalRepo implements ledger.Journal. Appends only; records are never
// updated here.
type JournalRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.Journal = (*JournalRepo)(nil)

// NewJournalRepo creates a movement journal repository.
func NewJournalRepo(txm *postgres.TxManager) *JournalRepo {
	return &JournalRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func movementRow(m *ledger.MovementRecord) []any {
	return []any{
		m.ID, m.ProductID, m.LocationID, m.ActorID,
		m.Type, m.Direction, m.Quantity.Int64Scaled(),
		m.PreviousQuantity.Int64Scaled(), m.NewQuantity.Int64Scaled(),
		m.Notes, m.ReferenceNumber, m.CreatedAt,
	}
}

// Append persists movement records. Multi-record appends inside a
// transaction go over the COPY protocol.
func (r *JournalRepo) Append(ctx context.Context, records ...ledger.MovementRecord) error {
	if len(records) == 0 {
		return nil
	}

	if len(records) > 1 && r.txm.GetTx(ctx) != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(records))
		for i := range records {
			rows = append(rows, movementRow(&records[i]))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementRecordsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementRecordsTable).Columns(movementColumns...)
	for i := range records {
		q = q.Values(movementRow(&records[i])...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// listQuery builds the history select for the filter.
func (r *JournalRepo) listQuery(filter ledger.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).
		From(movementRecordsTable).
		OrderBy("created_at", "id")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.ActorID != nil {
		q = q.Where(squirrel.Eq{"actor_id": *filter.ActorID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}

// List returns history matching the filter, oldest first.
func (r *JournalRepo) List(ctx context.Context, filter ledger.MovementFilter) ([]ledger.MovementRecord, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []ledger.MovementRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return records, nil
}
