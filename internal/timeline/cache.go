package timeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"anchorid/internal/anchor"
	platformredis "anchorid/internal/platform/redis"
)

// LedgerEventCacheTTL bounds how stale cached ledger reads may be. History
// reads tolerate short staleness; the local log is always current.
const LedgerEventCacheTTL = 5 * time.Minute

// EventCache is a read-through cache for ledger event lookups so history
// reads do not hammer the anchoring gateway.
type EventCache struct {
	client *platformredis.Client
	logger *slog.Logger
}

// NewEventCache wraps a redis client. A nil client disables caching; every
// Get misses.
func NewEventCache(client *platformredis.Client, logger *slog.Logger) *EventCache {
	return &EventCache{client: client, logger: logger}
}

func cacheKey(subject string) string {
	return "ledger-events:" + subject
}

// Get returns cached events and whether the key was present. Cache errors
// degrade to a miss.
func (c *EventCache) Get(ctx context.Context, subject string) ([]anchor.Event, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(subject)).Bytes()
	if err != nil {
		return nil, false
	}
	var events []anchor.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		c.logger.WarnContext(ctx, "corrupt ledger event cache entry, dropping", "subject", subject, "error", err)
		_ = c.client.Del(ctx, cacheKey(subject)).Err()
		return nil, false
	}
	return events, true
}

// Put stores events under the subject key with the cache TTL.
func (c *EventCache) Put(ctx context.Context, subject string, events []anchor.Event) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(subject), raw, LedgerEventCacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "ledger event cache write failed", "subject", subject, "error", err)
	}
}
