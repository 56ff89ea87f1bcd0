package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/models"
)

func TestTransfer_SkipPolicy(t *testing.T) {
	// 3 source records, 1 already at the destination: skip writes exactly 2.
	cat := newFakeCategory(models.CategoryContacts, namedRecords("a", "b", "c"), "b")

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, transferHooks{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, cat.writes())
}

func TestTransfer_OverwritePolicy(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, namedRecords("a", "b"), "b")

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictOverwrite, false, transferHooks{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, cat.creates)
	assert.Equal(t, 1, cat.updates)
}

func TestTransfer_CreateNewPolicy(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, namedRecords("a"), "a")

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictCreateNew, false, transferHooks{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, cat.creates)
	_, dup := cat.dest["a (copy)"]
	assert.True(t, dup, "createNew should insert the disambiguated duplicate")
}

func TestTransfer_DryRunWritesNothing(t *testing.T) {
	wet := newFakeCategory(models.CategoryContacts, namedRecords("a", "b", "c"), "b")
	dry := newFakeCategory(models.CategoryContacts, namedRecords("a", "b", "c"), "b")

	wetResult, err := transferCategory(context.Background(), wet, testSource, testDest,
		models.ConflictSkip, false, transferHooks{})
	require.NoError(t, err)
	dryResult, err := transferCategory(context.Background(), dry, testSource, testDest,
		models.ConflictSkip, true, transferHooks{})
	require.NoError(t, err)

	assert.Equal(t, wetResult.Succeeded, dryResult.Succeeded, "dry run must report identical counts")
	assert.Equal(t, wetResult.Failed, dryResult.Failed)
	assert.Equal(t, 0, dry.writes(), "dry run must perform zero destination writes")
}

func TestTransfer_BadRecordDoesNotAbortCategory(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, namedRecords("a", "bad", "c"))
	cat.failKey = "bad"

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, transferHooks{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad")
}

func TestTransfer_ListFailureSurfacesAsError(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, nil)
	cat.listErr = errors.New("boom")

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, transferHooks{})
	require.Error(t, err)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
}

func TestTransfer_CancellationStopsBetweenRecords(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, namedRecords("a", "b", "c", "d"))

	processed := 0
	hooks := transferHooks{
		cancelled: func() bool { return processed >= 2 },
		onRecord:  func(bool, string) { processed++ },
	}
	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, hooks)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded, "counts accumulated so far are returned")
	assert.Equal(t, 2, cat.writes())
}

func TestTransfer_EmptyNaturalKeyCreatesWithoutLookup(t *testing.T) {
	cat := newFakeCategory(models.CategoryContacts, []crm.Record{{"id": "src-0"}})

	result, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, transferHooks{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, cat.creates)
}

func TestTransfer_ReportsTotal(t *testing.T) {
	cat := newFakeCategory(models.CategoryTags, namedRecords("a", "b"))

	total := -1
	_, err := transferCategory(context.Background(), cat, testSource, testDest,
		models.ConflictSkip, false, transferHooks{onTotal: func(n int) { total = n }})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
