package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmops/crm-migrator/internal/models"
)

func testJob(created time.Time) *models.MigrationJob {
	job := models.NewMigrationJob(models.MigrationOptions{
		Categories: []models.Category{models.CategoryTags},
	}, nil)
	job.CreatedAt = created
	return job
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	job, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryStore_PutIsCreateOrReplace(t *testing.T) {
	s := NewMemoryStore()
	job := testJob(time.Now())
	require.NoError(t, s.Put(context.Background(), job))

	job.Status = models.StatusRunning
	require.NoError(t, s.Put(context.Background(), job))

	got, err := s.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusRunning, got.Status)

	jobs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "replacing must not duplicate")
}

func TestMemoryStore_GetReturnsIsolatedCopy(t *testing.T) {
	s := NewMemoryStore()
	job := testJob(time.Now())
	require.NoError(t, s.Put(context.Background(), job))

	got, err := s.Get(context.Background(), job.ID)
	require.NoError(t, err)
	p := got.CategoryProgress[models.CategoryTags]
	p.RecordSuccess()
	got.CategoryProgress[models.CategoryTags] = p

	again, err := s.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, again.CategoryProgress[models.CategoryTags].Processed,
		"mutating a returned job must not leak into the store")
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	old := testJob(time.Now().Add(-time.Hour))
	mid := testJob(time.Now().Add(-time.Minute))
	recent := testJob(time.Now())
	for _, j := range []*models.MigrationJob{mid, recent, old} {
		require.NoError(t, s.Put(context.Background(), j))
	}

	jobs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, recent.ID, jobs[0].ID)
	assert.Equal(t, mid.ID, jobs[1].ID)
	assert.Equal(t, old.ID, jobs[2].ID)
}
