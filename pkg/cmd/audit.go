package cmd

import (
	"github.com/archonhq/archon/pkg/audit"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/archonhq/archon/pkg/persistence/postgresql"
)

// NewAuditStore returns the audit store co-located with the persistence
// backend when it offers one, falling back to an in-memory store.
func NewAuditStore(p persistence.Persistence) audit.Store {
	if pg, ok := p.(*postgresql.Persistence); ok {
		return pg.AuditStore()
	}

	return audit.NewMemoryStore()
}
