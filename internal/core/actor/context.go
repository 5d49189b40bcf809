// Package actor provides request-scoped identity of the acting user.
// The surrounding application authenticates the user and performs
// capability checks before calling the ledger; the ledger only needs the
// identity for movement attribution and log enrichment.
package actor

import (
	"context"

	"stockledger/internal/core/id"
)

// Actor identifies the user a movement is attributed to.
type Actor struct {
	UserID    id.ID
	Email     string
	RequestID string
}

type actorKey struct{}

// WithActor adds the acting user to context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext returns the acting user from context, or nil.
func FromContext(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// UserID returns the acting user's id from context, or the nil id.
func UserID(ctx context.Context) id.ID {
	if a := FromContext(ctx); a != nil {
		return a.UserID
	}
	return id.Nil()
}
