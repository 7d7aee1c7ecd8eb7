package anchor

import (
	"context"
	"time"
)

// Ledger is the port to the external anchoring service. Implementations
// append immutable records and return an opaque receipt identifier. The core
// never re-sends an already anchored digest; retry sequencing is the
// service's concern.
type Ledger interface {
	// Anchor commits a 32-byte digest for a subject and returns a receipt id.
	Anchor(ctx context.Context, digest Digest, subject string) (string, error)

	// Events lists the ledger's anchored events for a subject in ledger
	// order.
	Events(ctx context.Context, subject string) ([]Event, error)
}

// Event is one ledger-sourced anchoring record.
type Event struct {
	Receipt   string    `json:"receipt_id"`
	Timestamp time.Time `json:"timestamp"`
	// Position is the ledger's own ordering metadata (block height or
	// sequence number). Informational only; local timestamps rank the
	// timeline.
	Position uint64 `json:"position"`
}
