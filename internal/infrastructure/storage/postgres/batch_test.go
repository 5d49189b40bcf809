package postgres

import (
	"context"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
)

// fakeCopyTx records what CopyFrom receives. The embedded interface
// covers the methods the test never calls.
type fakeCopyTx struct {
	pgx.Tx

	table   pgx.Identifier
	columns []string
	rows    [][]any
}

func (f *fakeCopyTx) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.table = table
	f.columns = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return int64(len(f.rows)), err
		}
		f.rows = append(f.rows, values)
	}
	return int64(len(f.rows)), src.Err()
}

func TestCopyFromSlice_RequiresTransaction(t *testing.T) {
	inserter := NewBatchInserter(&TxManager{})

	_, err := inserter.CopyFromSlice(context.Background(), "movement_records", []string{"id"}, [][]any{{int64(1)}})
	if err == nil {
		t.Fatal("expected an error outside a transaction")
	}
}

func TestCopyFromSlice_StreamsRows(t *testing.T) {
	fake := &fakeCopyTx{}
	ctx := context.WithValue(context.Background(), txKey{}, &Tx{Tx: fake})

	rows := [][]any{
		{int64(1), "first"},
		{int64(2), "second"},
	}
	n, err := NewBatchInserter(&TxManager{}).CopyFromSlice(ctx, "movement_records", []string{"id", "notes"}, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n != 2 {
		t.Errorf("expected 2 rows copied, got %d", n)
	}
	if got := fake.table.Sanitize(); got != `"movement_records"` {
		t.Errorf("unexpected table: %s", got)
	}
	if !reflect.DeepEqual(fake.columns, []string{"id", "notes"}) {
		t.Errorf("unexpected columns: %v", fake.columns)
	}
	if !reflect.DeepEqual(fake.rows, rows) {
		t.Errorf("unexpected rows: %v", fake.rows)
	}
}
