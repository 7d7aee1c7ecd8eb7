// Package store persists enrollment records. The postgres store is the
// production path; the memory store backs unit tests.
package store

import (
	"context"

	"anchorid/internal/identity"
	id "anchorid/pkg/domain"
)

// Store persists Identity records. Insert fails with a conflict-coded error
// when the DID already exists; DIDs are never reissued.
type Store interface {
	Insert(ctx context.Context, record *identity.Identity) error
	FindByDID(ctx context.Context, did id.DID) (*identity.Identity, error)
}
