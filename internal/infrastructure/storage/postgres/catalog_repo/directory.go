// Package catalog_repo provides read-only lookups against the catalog
// tables owned by the surrounding application. The ledger only needs
// existence checks before writing.
package catalog_repo

import (
	"context"
	"fmt"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

// ProductDir implements ledger.ProductDirectory.
type ProductDir struct {
	txm *postgres.TxManager
}

var _ ledger.ProductDirectory = (*ProductDir)(nil)

// NewProductDir creates a product directory.
func NewProductDir(txm *postgres.TxManager) *ProductDir {
	return &ProductDir{txm: txm}
}

// Exists reports whether the product exists and is not soft-deleted.
func (d *ProductDir) Exists(ctx context.Context, productID id.ID) (bool, error) {
	const sql = `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	querier := d.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

// LocationDir implements ledger.LocationDirectory.
type LocationDir struct {
	txm *postgres.TxManager
}

var _ ledger.LocationDirectory = (*LocationDir)(nil)

// NewLocationDir creates a location directory.
func NewLocationDir(txm *postgres.TxManager) *LocationDir {
	return &LocationDir{txm: txm}
}

// Exists reports whether the location exists and is not soft-deleted.
func (d *LocationDir) Exists(ctx context.Context, locationID id.ID) (bool, error) {
	const sql = `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	querier := d.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, locationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check location exists: %w", err)
	}
	return exists, nil
}
