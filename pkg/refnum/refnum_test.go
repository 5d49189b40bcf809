package refnum

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the ledger_sequences UPSERT: args[1], when
// present, is the increment; strict calls pass only the key.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func TestNext_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("TRF")
	period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.Next(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2026-00001" {
		t.Errorf("expected TRF-2026-00001, got %s", num)
	}

	num, err = svc.Next(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2026-00002" {
		t.Errorf("expected TRF-2026-00002, got %s", num)
	}
}

func TestNext_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("BLK")
	period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	// First call reserves numbers 1..10 with one DB round trip.
	num, err := svc.Next(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "BLK-2026-00001" {
		t.Errorf("expected BLK-2026-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected reserved range up to 10, got %d", q.currentValue)
	}

	// The rest of the range is served from memory.
	for i := 2; i <= 10; i++ {
		num, err = svc.Next(ctx, cfg, opts, period)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := fmt.Sprintf("BLK-2026-%05d", i)
		if num != want {
			t.Errorf("expected %s, got %s", want, num)
		}
	}
	if q.currentValue != 10 {
		t.Errorf("expected no extra DB round trips, sequence at %d", q.currentValue)
	}

	// Spending the range triggers the next reservation.
	num, err = svc.Next(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "BLK-2026-00011" {
		t.Errorf("expected BLK-2026-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected reserved range up to 20, got %d", q.currentValue)
	}
}

func TestNext_ResetPeriodKeys(t *testing.T) {
	svc := New(&mockQuerier{})

	period := time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		reset string
		want  string
	}{
		{"year", "TRF_2026"},
		{"month", "TRF_2026_07"},
		{"never", "TRF"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig("TRF")
		cfg.ResetPeriod = tt.reset
		if got := svc.buildKey(cfg, period); got != tt.want {
			t.Errorf("reset %q: expected key %s, got %s", tt.reset, tt.want, got)
		}
	}
}
