package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmops/crm-migrator/internal/models"
)

func TestAnalyzeSource_Counts(t *testing.T) {
	tags := newFakeCategory(models.CategoryTags, namedRecords("a", "b", "c"))
	contacts := newFakeCategory(models.CategoryContacts, namedRecords("x"))
	a := NewAnalyzer([]CategorySource{tags, contacts}, 2)

	result := a.AnalyzeSource(context.Background(), testSource)
	require.True(t, result.Success)
	assert.Equal(t, 3, result.Counts[models.CategoryTags].EstimatedCount)
	assert.Equal(t, 1, result.Counts[models.CategoryContacts].EstimatedCount)
	assert.Equal(t, 8, result.EstimatedDurationSeconds, "4 records at 2s each")
	assert.Empty(t, result.Notes)
}

func TestAnalyzeSource_DegradesPerCategory(t *testing.T) {
	broken := newFakeCategory(models.CategoryWorkflows, nil)
	broken.listErr = errors.New("forbidden")
	tags := newFakeCategory(models.CategoryTags, namedRecords("a", "b"))
	a := NewAnalyzer([]CategorySource{broken, tags}, 1)

	result := a.AnalyzeSource(context.Background(), testSource)
	require.True(t, result.Success, "one unreachable category must not block the analysis")
	assert.Equal(t, 0, result.Counts[models.CategoryWorkflows].EstimatedCount)
	assert.Equal(t, 2, result.Counts[models.CategoryTags].EstimatedCount)
	assert.Equal(t, 2, result.EstimatedDurationSeconds)
	if assert.Len(t, result.Notes, 1) {
		assert.Contains(t, result.Notes[0], "workflows")
	}
}

func TestAnalyzeSource_MissingCredentials(t *testing.T) {
	a := NewAnalyzer(nil, 1)
	result := a.AnalyzeSource(context.Background(), models.AccountCredentials{})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestExport_Snapshot(t *testing.T) {
	tags := newFakeCategory(models.CategoryTags, namedRecords("a", "b"))
	broken := newFakeCategory(models.CategoryForms, nil)
	broken.listErr = errors.New("forbidden")
	e := NewExporter([]CategorySource{tags, broken})

	doc, err := e.Export(context.Background(), testSource)
	require.NoError(t, err)
	assert.Equal(t, testSource.LocationID, doc.LocationID)
	assert.Len(t, doc.Data[models.CategoryTags], 2)
	assert.Empty(t, doc.Data[models.CategoryForms], "failed category degrades to empty array")
	if assert.Len(t, doc.Notes, 1) {
		assert.Contains(t, doc.Notes[0], "forms")
	}
	assert.Zero(t, tags.writes(), "export never writes anywhere")
}

func TestExport_MissingCredentials(t *testing.T) {
	e := NewExporter(nil)
	_, err := e.Export(context.Background(), models.AccountCredentials{})
	require.Error(t, err)
}
