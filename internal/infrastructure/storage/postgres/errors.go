package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes that mean the transaction was chosen as the
// victim of a concurrency conflict and can be retried as a whole.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err is a Postgres serialization
// failure or deadlock. Opposing transfers contending for the same two
// stock rows can deadlock; the victim did nothing wrong, it just lost a
// race, so callers should see the failure as retryable.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
