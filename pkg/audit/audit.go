// Package audit provides the append-only, per-stream sequenced event record
// consumed by the workflow and feature engines.
package audit

import (
	"context"
	"errors"
	"time"
)

// ErrStreamNotFound indicates no events exist for the stream/category pair.
var ErrStreamNotFound = errors.New("audit stream not found")

// Event is one immutable record of a stream. Sequence is assigned by the
// store, monotonically increasing per (StreamID, Category) starting at 0,
// never reused or reordered. Category is an opaque partition key.
type Event struct {
	StreamID   string         `json:"stream_id"`
	Category   string         `json:"category"`
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredOn time.Time      `json:"occurred_on"`
	UserEmail  string         `json:"user_email"`
	Tenant     string         `json:"tenant,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Sequence   int64          `json:"sequence"`
}

// Store is the append-only audit contract. Append assigns the sequence and
// returns the stored event; GetStream returns events in sequence order.
type Store interface {
	Append(ctx context.Context, streamID, category string, event Event) (Event, error)
	GetStream(ctx context.Context, streamID, category string) ([]Event, error)
}
