package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// CompressionAlgo identifies how a correction's before-image is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// CorrectionEntry records one administrative removal of a movement
// record. Movement records are immutable in normal operation; voiding one
// is an audit-correction action outside the engine's guarantees, and this
// log preserves the full before-image of what was removed.
type CorrectionEntry struct {
	ID                    id.ID           `db:"id"`
	MovementID            id.ID           `db:"movement_id"`
	ActorID               id.ID           `db:"actor_id"`
	Reason                string          `db:"reason"`
	BeforeImage           json.RawMessage `db:"before_image"`
	BeforeImageCompressed []byte          `db:"before_image_compressed"`
	CompressionAlgo       CompressionAlgo `db:"compression_algo"`
	CreatedAt             time.Time       `db:"created_at"`
}

// CorrectionService voids movement records with an audit trail and can
// restore them later from the stored before-images.
type CorrectionService struct {
	txManager *TxManager
	journal   ledger.Journal
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder

	// compressThreshold is the before-image size above which zstd kicks in.
	compressThreshold int
}

// NewCorrectionService creates a correction service.
func NewCorrectionService(txManager *TxManager, journal ledger.Journal) (*CorrectionService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &CorrectionService{
		txManager:         txManager,
		journal:           journal,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// packBeforeImage stores the image on the entry, compressed when it
// exceeds the threshold.
func (s *CorrectionService) packBeforeImage(entry *CorrectionEntry, image []byte) {
	entry.CompressionAlgo = CompressionNone
	if len(image) > s.compressThreshold {
		entry.BeforeImageCompressed = s.encoder.EncodeAll(image, nil)
		entry.CompressionAlgo = CompressionZstd
		return
	}
	entry.BeforeImage = image
}

// Void removes a movement record after logging its before-image.
// Does not touch the stock record; run StockStore.RecalculateQuantity
// afterwards if the stored balance should follow the corrected journal.
func (s *CorrectionService) Void(ctx context.Context, movementID id.ID, reason string) error {
	if reason == "" {
		return apperror.NewValidation("correction reason is required")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := s.txManager.GetQuerier(ctx)

		var movement ledger.MovementRecord
		const selectSQL = `
			SELECT id, product_id, location_id, actor_id,
			       movement_type, direction, quantity,
			       previous_quantity, new_quantity,
			       notes, reference_number, created_at
			FROM movement_records
			WHERE id = $1
			FOR UPDATE
		`
		if err := pgxscan.Get(ctx, querier, &movement, selectSQL, movementID); err != nil {
			if pgxscan.NotFound(err) {
				return apperror.NewNotFound("movement record", movementID)
			}
			return fmt.Errorf("load movement: %w", err)
		}

		entry := CorrectionEntry{
			ID:         id.New(),
			MovementID: movementID,
			ActorID:    actor.UserID(ctx),
			Reason:     reason,
			CreatedAt:  time.Now().UTC(),
		}

		image, err := json.Marshal(movement)
		if err != nil {
			return fmt.Errorf("marshal before-image: %w", err)
		}
		s.packBeforeImage(&entry, image)

		const insertSQL = `
			INSERT INTO ledger_corrections
				(id, movement_id, actor_id, reason,
				 before_image, before_image_compressed, compression_algo, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := querier.Exec(ctx, insertSQL,
			entry.ID, entry.MovementID, entry.ActorID, entry.Reason,
			entry.BeforeImage, entry.BeforeImageCompressed, entry.CompressionAlgo, entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}

		if _, err := querier.Exec(ctx, `DELETE FROM movement_records WHERE id = $1`, movementID); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Warn(ctx, "voided movement record",
		"movement_id", movementID,
		"reason", reason,
	)
	return nil
}

// Restore re-appends previously voided movement records from their
// stored before-images and removes the correction entries, all in one
// transaction. Multi-record restores go over the journal's COPY path.
// Like Void it leaves stock records alone; run
// StockStore.RecalculateQuantity for the affected pairs afterwards.
func (s *CorrectionService) Restore(ctx context.Context, correctionIDs ...id.ID) error {
	if len(correctionIDs) == 0 {
		return nil
	}

	var restored int
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := s.txManager.GetQuerier(ctx)

		var entries []CorrectionEntry
		const selectSQL = `
			SELECT id, movement_id, actor_id, reason,
			       before_image, before_image_compressed, compression_algo, created_at
			FROM ledger_corrections
			WHERE id = ANY($1)
			FOR UPDATE
		`
		if err := pgxscan.Select(ctx, querier, &entries, selectSQL, correctionIDs); err != nil {
			return fmt.Errorf("load corrections: %w", err)
		}
		if len(entries) != len(correctionIDs) {
			found := make(map[id.ID]bool, len(entries))
			for i := range entries {
				found[entries[i].ID] = true
			}
			for _, correctionID := range correctionIDs {
				if !found[correctionID] {
					return apperror.NewNotFound("correction", correctionID)
				}
			}
		}

		records := make([]ledger.MovementRecord, 0, len(entries))
		for i := range entries {
			image, err := s.BeforeImageOf(&entries[i])
			if err != nil {
				return err
			}
			var movement ledger.MovementRecord
			if err := json.Unmarshal(image, &movement); err != nil {
				return fmt.Errorf("decode before-image: %w", err)
			}
			records = append(records, movement)
		}

		if err := s.journal.Append(ctx, records...); err != nil {
			return fmt.Errorf("restore movements: %w", err)
		}

		if _, err := querier.Exec(ctx, `DELETE FROM ledger_corrections WHERE id = ANY($1)`, correctionIDs); err != nil {
			return fmt.Errorf("delete corrections: %w", err)
		}

		restored = len(records)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Warn(ctx, "restored voided movement records", "count", restored)
	return nil
}

// BeforeImageOf returns the stored before-image of a correction,
// decompressing when needed.
func (s *CorrectionService) BeforeImageOf(entry *CorrectionEntry) (json.RawMessage, error) {
	switch entry.CompressionAlgo {
	case CompressionZstd:
		image, err := s.decoder.DecodeAll(entry.BeforeImageCompressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress before-image: %w", err)
		}
		return image, nil
	default:
		return entry.BeforeImage, nil
	}
}
