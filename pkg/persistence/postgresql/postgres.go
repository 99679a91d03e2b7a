// Package postgresql provides PostgreSQL persistence for workflow instances
// and the audit event store.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/archonhq/archon/pkg/audit"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/archonhq/archon/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	instanceRepo *InstanceRepository
	auditStore   *audit.PostgresStore
}

// NewPersistence connects to PostgreSQL and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		instanceRepo: NewInstanceRepository(database, logger),
		auditStore:   audit.NewPostgresStore(database),
	}, nil
}

// InstanceRepository returns the workflow instance repository.
func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

// AuditStore returns the audit event store sharing this connection.
func (p *Persistence) AuditStore() audit.Store {
	return p.auditStore
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_instances (
				uuid            TEXT PRIMARY KEY,
				definition_uuid TEXT        NOT NULL,
				node_uuid       TEXT        NOT NULL,
				current_state   TEXT        NOT NULL,
				running         BOOLEAN     NOT NULL,
				cancelled       BOOLEAN     NOT NULL,
				version         INTEGER     NOT NULL,
				document        JSONB       NOT NULL,
				created_at      TIMESTAMPTZ NOT NULL,
				modified_at     TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_instances_node
				ON workflow_instances (node_uuid);
			CREATE INDEX IF NOT EXISTS idx_workflow_instances_definition
				ON workflow_instances (definition_uuid);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_workflow_instances_running_node
				ON workflow_instances (node_uuid) WHERE running;
		`,
		2: audit.Schema(),
	}
}
