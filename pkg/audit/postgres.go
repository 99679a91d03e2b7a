package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore is an audit store backed by PostgreSQL. Sequence assignment
// happens inside a transaction holding the stream's max sequence, so
// concurrent appends to one stream never collide.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the migration statement for the audit table, run by the
// persistence layer's migration manager.
func Schema() string {
	return `
		CREATE TABLE IF NOT EXISTS audit_events (
			stream_id   TEXT        NOT NULL,
			category    TEXT        NOT NULL,
			sequence    BIGINT      NOT NULL,
			event_id    TEXT        NOT NULL,
			event_type  TEXT        NOT NULL,
			occurred_on TIMESTAMPTZ NOT NULL,
			user_email  TEXT        NOT NULL DEFAULT '',
			tenant      TEXT        NOT NULL DEFAULT '',
			payload     JSONB,
			PRIMARY KEY (stream_id, category, sequence)
		);
	`
}

func (s *PostgresStore) Append(ctx context.Context, streamID, category string, event Event) (Event, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Event{}, fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence) + 1, 0)
		FROM audit_events
		WHERE stream_id = $1 AND category = $2
	`, streamID, category).Scan(&next)
	if err != nil {
		return Event{}, fmt.Errorf("failed to compute next sequence: %w", err)
	}

	event.StreamID = streamID
	event.Category = category
	event.Sequence = next

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	if event.OccurredOn.IsZero() {
		event.OccurredOn = time.Now().UTC()
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events
			(stream_id, category, sequence, event_id, event_type, occurred_on, user_email, tenant, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.StreamID, event.Category, event.Sequence, event.EventID,
		event.EventType, event.OccurredOn, event.UserEmail, event.Tenant, payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to append audit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("failed to commit audit event: %w", err)
	}

	return event, nil
}

func (s *PostgresStore) GetStream(ctx context.Context, streamID, category string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_id, category, sequence, event_id, event_type, occurred_on, user_email, tenant, payload
		FROM audit_events
		WHERE stream_id = $1 AND category = $2
		ORDER BY sequence ASC
	`, streamID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit stream: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var (
			event   Event
			payload []byte
		)

		err := rows.Scan(&event.StreamID, &event.Category, &event.Sequence, &event.EventID,
			&event.EventType, &event.OccurredOn, &event.UserEmail, &event.Tenant, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}

	if len(events) == 0 {
		return nil, ErrStreamNotFound
	}

	return events, nil
}
