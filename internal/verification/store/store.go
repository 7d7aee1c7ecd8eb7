// Package store persists the append-only verification attempt log.
package store

import (
	"context"

	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
)

// Store is the attempt log. Append-only: there is no update or delete.
type Store interface {
	Append(ctx context.Context, attempt *verification.Attempt) error
	ListByDID(ctx context.Context, did id.DID) ([]verification.Attempt, error)
}
