package refnum

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MockGenerator is a test implementation of Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	NextFunc func(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	counter atomic.Int64
}

var _ Generator = (*MockGenerator)(nil)

// Next implements Generator. Without NextFunc it returns predictable
// numbers: PREFIX-00001, PREFIX-00002, ...
func (m *MockGenerator) Next(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, cfg, opts, period)
	}
	return fmt.Sprintf("%s-%05d", cfg.Prefix, m.counter.Add(1)), nil
}
