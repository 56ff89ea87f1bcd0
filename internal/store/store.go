// Package store persists migration job documents. The job manager only ever
// needs get-by-id, create-or-replace, and list-all, so that is the whole port.
package store

import (
	"context"

	"github.com/crmops/crm-migrator/internal/models"
)

// JobStore is the durable home of migration job documents. Put is
// create-or-replace keyed by job ID, so replaying a final write is harmless.
type JobStore interface {
	// Get returns the job with the given ID, or nil if unknown.
	Get(ctx context.Context, id string) (*models.MigrationJob, error)

	// Put creates or replaces the job document.
	Put(ctx context.Context, job *models.MigrationJob) error

	// List returns all job documents, most recently created first.
	List(ctx context.Context) ([]*models.MigrationJob, error)
}
