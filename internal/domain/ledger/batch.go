package ledger

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
	"stockledger/pkg/refnum"
)

// DefaultMaxBatchSize bounds one batch to keep resource consumption
// predictable for bulk-scan imports.
const DefaultMaxBatchSize = 500

// BatchOutcome is the per-item result of batch processing.
type BatchOutcome struct {
	Index   int             `json:"index"`
	Result  *MovementResult `json:"result,omitempty"`
	Err     error           `json:"-"`
	Message string          `json:"error,omitempty"`
}

// Failed reports whether the item was rejected.
func (o *BatchOutcome) Failed() bool { return o.Err != nil }

// BatchSummary aggregates batch processing counts.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResult carries per-item outcomes and the summary.
type BatchResult struct {
	Outcomes []BatchOutcome `json:"outcomes"`
	Summary  BatchSummary   `json:"summary"`
}

// BatchProcessor drives a sequence of independent movement requests.
// Each item runs in its own transaction through the engine; a
// business-rule failure on one item is recorded as that item's outcome
// and processing continues. The batch is deliberately NOT atomic across
// items: all successful items stay committed.
type BatchProcessor struct {
	engine  *Engine
	refnums refnum.Generator
	refCfg  refnum.Config

	maxBatchSize int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(engine *Engine, refnums refnum.Generator) *BatchProcessor {
	return &BatchProcessor{
		engine:       engine,
		refnums:      refnums,
		refCfg:       refnum.DefaultConfig("BLK"),
		maxBatchSize: DefaultMaxBatchSize,
	}
}

// WithMaxBatchSize overrides the batch size bound.
func (p *BatchProcessor) WithMaxBatchSize(n int) *BatchProcessor {
	if n > 0 {
		p.maxBatchSize = n
	}
	return p
}

// ProcessBatch applies each request independently and reports per-item
// outcomes plus a summary.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, requests []MovementRequest) (*BatchResult, error) {
	if len(requests) == 0 {
		return &BatchResult{}, nil
	}
	if len(requests) > p.maxBatchSize {
		return nil, apperror.NewValidation(
			fmt.Sprintf("batch of %d items exceeds the limit of %d", len(requests), p.maxBatchSize))
	}

	// One group reference for the whole batch; items that arrived without
	// their own reference get GROUPREF-NNN for audit grouping.
	groupRef, err := p.refnums.Next(ctx, p.refCfg, nil, time.Now())
	if err != nil {
		return nil, fmt.Errorf("mint batch reference: %w", err)
	}

	result := &BatchResult{
		Outcomes: make([]BatchOutcome, 0, len(requests)),
		Summary:  BatchSummary{Total: len(requests)},
	}

	for i, req := range requests {
		if req.ReferenceNumber == "" {
			req.ReferenceNumber = fmt.Sprintf("%s-%03d", groupRef, i+1)
		}

		outcome := BatchOutcome{Index: i}
		res, err := p.engine.ApplyMovement(ctx, req)
		if err != nil {
			outcome.Err = err
			outcome.Message = err.Error()
			if appErr, ok := apperror.AsAppError(err); ok {
				outcome.Message = appErr.Message
			}
			result.Summary.Failed++
		} else {
			outcome.Result = res
			result.Summary.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	logger.Info(ctx, "processed movement batch",
		"reference", groupRef,
		"total", result.Summary.Total,
		"succeeded", result.Summary.Succeeded,
		"failed", result.Summary.Failed,
	)
	return result, nil
}
