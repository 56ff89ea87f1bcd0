// Package migration orchestrates copying a CRM account's data between two
// accounts on the same platform: credential validation, scope analysis, the
// per-category transfer loop, the job state machine, and read-only export.
package migration

import (
	"context"

	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/models"
)

// CategorySource is everything the orchestrator needs from one data category.
// crm.CategoryEndpoint implements it; tests substitute in-memory fakes.
type CategorySource interface {
	Name() models.Category

	// List returns every record at the account in creation-time ascending order.
	List(ctx context.Context, acct models.AccountCredentials) ([]crm.Record, error)

	// Count returns the number of records at the account.
	Count(ctx context.Context, acct models.AccountCredentials) (int, error)

	// NaturalKey derives the idempotency anchor for a record ("" if none).
	NaturalKey(r crm.Record) string

	// Find looks a natural key up at the account, returning nil when absent.
	Find(ctx context.Context, acct models.AccountCredentials, key string) (crm.Record, error)

	Create(ctx context.Context, acct models.AccountCredentials, r crm.Record) error
	Update(ctx context.Context, acct models.AccountCredentials, existing, r crm.Record) error

	// Disambiguated returns a copy of r with an altered natural key for the
	// createNew conflict policy.
	Disambiguated(r crm.Record) crm.Record
}

// Pinger issues the lightweight authenticated read used to validate
// credentials. crm.Client implements it.
type Pinger interface {
	Ping(ctx context.Context, acct models.AccountCredentials) error
}

// sourcesByName indexes a category slice for option lookups.
func sourcesByName(cats []CategorySource) map[models.Category]CategorySource {
	m := make(map[models.Category]CategorySource, len(cats))
	for _, c := range cats {
		m[c.Name()] = c
	}
	return m
}
