// Package pinning pushes canonical payloads to a content-addressed storage
// gateway. Pinning is best-effort: a missing CID degrades the record, it
// never fails the request.
package pinning

import "context"

// Pinner stores a named payload in content-addressed storage and returns
// its content identifier.
type Pinner interface {
	Pin(ctx context.Context, name string, payload []byte) (string, error)
}
