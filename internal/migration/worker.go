package migration

import (
	"context"
	"fmt"

	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/models"
)

// TransferResult summarizes one category's run.
type TransferResult struct {
	Succeeded int
	Failed    int
	Errors    []string
}

// transferHooks couple a worker to the job manager: total once the source
// listing is known, one progress callback per record, and a cooperative
// cancellation predicate polled between records.
type transferHooks struct {
	cancelled func() bool
	onTotal   func(total int)
	onRecord  func(ok bool, errMsg string)
}

func noopHooks(h transferHooks) transferHooks {
	if h.cancelled == nil {
		h.cancelled = func() bool { return false }
	}
	if h.onTotal == nil {
		h.onTotal = func(int) {}
	}
	if h.onRecord == nil {
		h.onRecord = func(bool, string) {}
	}
	return h
}

// transferCategory copies every record of one category from source to
// destination with idempotent natural-key upserts. One bad record never
// aborts the category; it is counted, recorded, and skipped.
func transferCategory(
	ctx context.Context,
	cat CategorySource,
	source, destination models.AccountCredentials,
	policy models.ConflictPolicy,
	dryRun bool,
	hooks transferHooks,
) (TransferResult, error) {
	hooks = noopHooks(hooks)
	var result TransferResult

	records, err := cat.List(ctx, source)
	if err != nil {
		return result, fmt.Errorf("listing %s: %w", cat.Name(), err)
	}
	hooks.onTotal(len(records))

	for _, rec := range records {
		if hooks.cancelled() {
			break
		}

		if err := upsertRecord(ctx, cat, destination, rec, policy, dryRun); err != nil {
			result.Failed++
			msg := fmt.Sprintf("%s %s: %v", cat.Name(), recordLabel(cat, rec), err)
			result.Errors = append(result.Errors, truncateErr(msg))
			hooks.onRecord(false, msg)
			continue
		}
		result.Succeeded++
		hooks.onRecord(true, "")
	}
	return result, nil
}

// upsertRecord applies the conflict policy for a single record. Each branch
// is one remote write at most, so a cancelled job never leaves a record half
// transferred.
func upsertRecord(
	ctx context.Context,
	cat CategorySource,
	destination models.AccountCredentials,
	rec crm.Record,
	policy models.ConflictPolicy,
	dryRun bool,
) error {
	var existing crm.Record
	if key := cat.NaturalKey(rec); key != "" {
		found, err := cat.Find(ctx, destination, key)
		if err != nil {
			return fmt.Errorf("destination lookup: %w", err)
		}
		existing = found
	}

	switch {
	case existing == nil:
		if dryRun {
			return nil
		}
		return cat.Create(ctx, destination, rec)
	case policy == models.ConflictSkip:
		return nil
	case policy == models.ConflictOverwrite:
		if dryRun {
			return nil
		}
		return cat.Update(ctx, destination, existing, rec)
	default: // createNew
		if dryRun {
			return nil
		}
		return cat.Create(ctx, destination, cat.Disambiguated(rec))
	}
}

// recordLabel identifies a record in error messages: platform ID when
// present, natural key otherwise.
func recordLabel(cat CategorySource, rec crm.Record) string {
	if id := rec.ID(); id != "" {
		return id
	}
	if key := cat.NaturalKey(rec); key != "" {
		return key
	}
	return "(unidentified)"
}

const maxErrLen = 300

func truncateErr(s string) string {
	if len(s) <= maxErrLen {
		return s
	}
	return s[:maxErrLen] + "..."
}
