package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type streamKey struct {
	streamID string
	category string
}

// MemoryStore is an in-memory audit store. Appends to one stream are
// serialized under the store mutex, so sequences are gapless per
// (stream, category) pair.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[streamKey][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[streamKey][]Event)}
}

func (s *MemoryStore) Append(_ context.Context, streamID, category string, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey{streamID: streamID, category: category}

	event.StreamID = streamID
	event.Category = category
	event.Sequence = int64(len(s.streams[key]))

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	if event.OccurredOn.IsZero() {
		event.OccurredOn = time.Now().UTC()
	}

	s.streams[key] = append(s.streams[key], event)

	return event, nil
}

func (s *MemoryStore) GetStream(_ context.Context, streamID, category string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.streams[streamKey{streamID: streamID, category: category}]
	if !ok {
		return nil, ErrStreamNotFound
	}

	out := make([]Event, len(events))
	copy(out, events)

	return out, nil
}
