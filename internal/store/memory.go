package store

import (
	"context"
	"sort"
	"sync"

	"github.com/crmops/crm-migrator/internal/models"
)

// MemoryStore is a thread-safe in-memory JobStore, used in tests and when no
// database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.MigrationJob
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.MigrationJob)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.MigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return j.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, job *models.MigrationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.MigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.MigrationJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
