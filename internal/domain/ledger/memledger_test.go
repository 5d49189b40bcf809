package ledger

import (
	"context"
	"sync"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// In-memory fakes for the store contracts. memTxManager mimics the
// database transaction manager closely enough to exercise rollback:
// the outermost transaction snapshots the attached stores and restores
// them when fn fails; nested calls join the outer transaction.

type pairKey struct {
	product  id.ID
	location id.ID
}

type memStock struct {
	mu      sync.Mutex
	records map[pairKey]StockRecord

	// conflictsBefore forces the next N compare-and-set calls for a pair
	// to report a lost race.
	conflictsBefore map[pairKey]int
	casCalls        int
}

func newMemStock() *memStock {
	return &memStock{
		records:         make(map[pairKey]StockRecord),
		conflictsBefore: make(map[pairKey]int),
	}
}

func (s *memStock) seed(productID, locationID id.ID, quantity types.Quantity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.records[pairKey{productID, locationID}] = StockRecord{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *memStock) quantity(productID, locationID id.ID) types.Quantity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[pairKey{productID, locationID}].Quantity
}

func (s *memStock) Get(_ context.Context, productID, locationID id.ID) (StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[pairKey{productID, locationID}]; ok {
		return rec, nil
	}
	return StockRecord{ProductID: productID, LocationID: locationID}, nil
}

func (s *memStock) GetOrCreate(_ context.Context, productID, locationID id.ID) (StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{productID, locationID}
	if rec, ok := s.records[key]; ok {
		return rec, nil
	}
	now := time.Now().UTC()
	rec := StockRecord{
		ProductID:  productID,
		LocationID: locationID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.records[key] = rec
	return rec, nil
}

func (s *memStock) CompareAndSet(_ context.Context, productID, locationID id.ID, expected, next types.Quantity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++

	key := pairKey{productID, locationID}
	if n := s.conflictsBefore[key]; n > 0 {
		s.conflictsBefore[key] = n - 1
		return false, nil
	}

	rec, ok := s.records[key]
	if !ok || rec.Quantity != expected {
		return false, nil
	}
	rec.Quantity = next
	rec.UpdatedAt = time.Now().UTC()
	rec.LastMovementAt = rec.UpdatedAt
	s.records[key] = rec
	return true, nil
}

func (s *memStock) RecalculateQuantity(context.Context, id.ID, id.ID) error {
	return nil
}

func (s *memStock) snapshot() map[pairKey]StockRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[pairKey]StockRecord, len(s.records))
	for k, v := range s.records {
		cp[k] = v
	}
	return cp
}

func (s *memStock) restore(snap map[pairKey]StockRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap
}

type memJournal struct {
	mu      sync.Mutex
	entries []MovementRecord
}

func newMemJournal() *memJournal { return &memJournal{} }

func (j *memJournal) Append(_ context.Context, records ...MovementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, records...)
	return nil
}

func (j *memJournal) List(_ context.Context, filter MovementFilter) ([]MovementRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []MovementRecord
	for _, m := range j.entries {
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && m.LocationID != *filter.LocationID {
			continue
		}
		if filter.ActorID != nil && m.ActorID != *filter.ActorID {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.FromDate != nil && m.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && !m.CreatedAt.Before(*filter.ToDate) {
			continue
		}
		out = append(out, m)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func (j *memJournal) snapshot() []MovementRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]MovementRecord(nil), j.entries...)
}

func (j *memJournal) restore(snap []MovementRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = snap
}

type memDirectory struct {
	mu  sync.Mutex
	ids map[id.ID]bool
}

func newMemDirectory(ids ...id.ID) *memDirectory {
	d := &memDirectory{ids: make(map[id.ID]bool)}
	for _, v := range ids {
		d.ids[v] = true
	}
	return d
}

func (d *memDirectory) Exists(_ context.Context, entityID id.ID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ids[entityID], nil
}

type memTxKey struct{}

// memTxManager restores store state when the outermost fn fails.
// Suitable for serial tests; concurrent tests use passthroughTx.
type memTxManager struct {
	stock   *memStock
	journal *memJournal

	readOnlyCalls int
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	stockSnap := m.stock.snapshot()
	journalSnap := m.journal.snapshot()

	err := fn(context.WithValue(ctx, memTxKey{}, true))
	if err != nil {
		m.stock.restore(stockSnap)
		m.journal.restore(journalSnap)
	}
	return err
}

func (m *memTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	m.readOnlyCalls++
	return fn(ctx)
}

// passthroughTx runs fn without transactional bookkeeping.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
