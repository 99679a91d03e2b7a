package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/archonhq/archon/pkg/audit"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/archonhq/archon/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"audit_events", "workflow_instances", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("archon_test"),
			postgres.WithUsername("archon"),
			postgres.WithPassword("archon"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx, databaseURL
}

func testInstance(nodeUUID string) *models.WorkflowInstance {
	now := time.Now().UTC()

	return &models.WorkflowInstance{
		UUID:           uuid.New().String(),
		DefinitionUUID: "wf-approval",
		NodeUUID:       nodeUUID,
		CurrentState:   "draft",
		Running:        true,
		StartedBy:      "carol@example.com",
		History:        []models.HistoryEntry{},
		CreatedAt:      now,
		ModifiedAt:     now,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	for _, table := range []string{"workflow_instances", "audit_events", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}
}

func TestInstanceRepository_RoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.InstanceRepository()

	instance := testInstance("n-1")
	require.NoError(t, repo.Add(ctx, instance))
	assert.Equal(t, 1, instance.Version)

	loaded, err := repo.GetByUUID(ctx, instance.UUID)
	require.NoError(t, err)
	assert.Equal(t, "draft", loaded.CurrentState)
	assert.True(t, loaded.Running)

	instance.CurrentState = "review"
	require.NoError(t, repo.Update(ctx, instance))
	assert.Equal(t, 2, instance.Version)

	stale := loaded
	stale.CurrentState = "rejected"

	err = repo.Update(ctx, stale)
	assert.True(t, persistence.IsStaleInstance(err))
}

func TestInstanceRepository_OneRunningInstancePerNode(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.InstanceRepository()

	require.NoError(t, repo.Add(ctx, testInstance("n-1")))

	// A second running instance on the same node trips the partial unique
	// index and comes back as a duplicate.
	err := repo.Add(ctx, testInstance("n-1"))
	assert.True(t, persistence.IsDuplicateInstance(err))

	// A terminal instance on the same node is fine.
	done := testInstance("n-1")
	done.Running = false
	assert.NoError(t, repo.Add(ctx, done))
}

func TestInstanceRepository_FindActive(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.InstanceRepository()

	require.NoError(t, repo.Add(ctx, testInstance("n-1")))

	other := testInstance("n-2")
	other.DefinitionUUID = "wf-retention"
	require.NoError(t, repo.Add(ctx, other))

	done := testInstance("n-3")
	done.Running = false
	require.NoError(t, repo.Add(ctx, done))

	active, err := repo.FindActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	scoped, err := repo.FindActive(ctx, "wf-retention")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, other.UUID, scoped[0].UUID)
}

func TestAuditStore_SequencePerStream(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := p.AuditStore()

	for i := range 3 {
		event, err := store.Append(ctx, "instance-1", "workflow", audit.Event{EventType: "WorkflowTransitioned"})
		require.NoError(t, err)
		assert.EqualValues(t, i, event.Sequence)
	}

	event, err := store.Append(ctx, "instance-2", "workflow", audit.Event{EventType: "WorkflowStarted"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, event.Sequence)

	stream, err := store.GetStream(ctx, "instance-1", "workflow")
	require.NoError(t, err)
	require.Len(t, stream, 3)

	for i, stored := range stream {
		assert.EqualValues(t, i, stored.Sequence)
	}

	_, err = store.GetStream(ctx, "ghost", "workflow")
	assert.ErrorIs(t, err, audit.ErrStreamNotFound)
}
