package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Emitter is the surface domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// StreamSink forwards serialized events to an external stream (Kafka).
// Delivery is best-effort; the store remains the system of record.
type StreamSink interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher persists every event to the store and fans out to an optional
// stream sink. Store writes are synchronous and fail-closed; sink writes are
// logged and dropped on failure.
type Publisher struct {
	store  Store
	sink   StreamSink
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithStreamSink attaches a stream sink publishing to the given topic.
func WithStreamSink(sink StreamSink, topic string) Option {
	return func(p *Publisher) {
		p.sink = sink
		p.topic = topic
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store Store, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// wireEvent is the JSON structure published to the stream sink.
type wireEvent struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	DID       string `json:"did,omitempty"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Receipt   string `json:"receipt,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Emit records the event. The category is always derived from the action;
// callers never set it directly.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Category = AuditEvent(event.Action).Category()

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"did", event.DID,
			"error", err,
		)
		return err
	}

	if p.sink == nil {
		return nil
	}

	payload, err := json.Marshal(wireEvent{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		UserID:    event.UserID.String(),
		DID:       event.DID.String(),
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		Receipt:   event.Receipt,
		RequestID: event.RequestID,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "audit wire marshal failed", "error", err)
		return nil
	}
	if err := p.sink.Publish(ctx, p.topic, []byte(event.DID), payload); err != nil {
		p.logger.WarnContext(ctx, "audit stream publish failed, event kept in store",
			"action", event.Action,
			"error", err,
		)
	}
	return nil
}
