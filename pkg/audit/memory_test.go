package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Append_SequencePerStream(t *testing.T) {
	store := NewMemoryStore()

	for i := range 3 {
		event, err := store.Append(t.Context(), "instance-1", "workflow", Event{EventType: "WorkflowTransitioned"})
		require.NoError(t, err)
		assert.EqualValues(t, i, event.Sequence)
		assert.NotEmpty(t, event.EventID)
		assert.False(t, event.OccurredOn.IsZero())
	}

	// A different stream starts its own sequence at zero.
	event, err := store.Append(t.Context(), "instance-2", "workflow", Event{EventType: "WorkflowStarted"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, event.Sequence)
}

func TestMemoryStore_Append_CategoriesAreIndependent(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Append(t.Context(), "instance-1", "workflow", Event{EventType: "WorkflowStarted"})
	require.NoError(t, err)

	event, err := store.Append(t.Context(), "instance-1", "retention", Event{EventType: "RetentionApplied"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, event.Sequence, "sequence is per (stream, category) pair")

	workflow, err := store.GetStream(t.Context(), "instance-1", "workflow")
	require.NoError(t, err)
	require.Len(t, workflow, 1)
	assert.Equal(t, "WorkflowStarted", workflow[0].EventType)
}

func TestMemoryStore_GetStream_Ordered(t *testing.T) {
	store := NewMemoryStore()

	types := []string{"WorkflowStarted", "WorkflowTransitioned", "WorkflowCancelled"}
	for _, eventType := range types {
		_, err := store.Append(t.Context(), "instance-1", "workflow", Event{EventType: eventType})
		require.NoError(t, err)
	}

	stream, err := store.GetStream(t.Context(), "instance-1", "workflow")
	require.NoError(t, err)
	require.Len(t, stream, 3)

	for i, event := range stream {
		assert.EqualValues(t, i, event.Sequence)
		assert.Equal(t, types[i], event.EventType)
	}
}

func TestMemoryStore_GetStream_Missing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetStream(t.Context(), "nope", "workflow")
	assert.ErrorIs(t, err, ErrStreamNotFound)
}
