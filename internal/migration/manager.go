package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/crmops/crm-migrator/internal/models"
	"github.com/crmops/crm-migrator/internal/store"
)

// defaultMaxParallel is how many categories run in flight at once. Categories
// share the destination's rate limiter, so more parallelism past a few buys
// nothing.
const defaultMaxParallel = 3

// ErrNoCategories rejects a start request whose category set is empty.
var ErrNoCategories = errors.New("at least one category must be selected")

// jobAccounts holds the credentials of a non-terminal job. They live only in
// memory; the persisted job document never contains them.
type jobAccounts struct {
	source      models.AccountCredentials
	destination models.AccountCredentials
}

// Manager owns the migration job state machine: it creates jobs, schedules
// category workers with bounded parallelism, merges their progress into the
// persisted job document, and exposes cancellation and history.
type Manager struct {
	store       store.JobStore
	logger      *log.Logger
	sources     map[models.Category]CategorySource
	maxParallel int

	// mu serializes read-modify-write cycles on job documents so concurrent
	// category workers do not clobber each other's progress slice.
	mu       sync.Mutex
	accounts map[string]jobAccounts
	cancels  map[string]*atomic.Bool
}

// NewManager wires a Manager to its job store and category sources. A
// non-positive maxParallel selects the default.
func NewManager(st store.JobStore, categories []CategorySource, logger *log.Logger, maxParallel int) *Manager {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &Manager{
		store:       st,
		logger:      logger,
		sources:     sourcesByName(categories),
		maxParallel: maxParallel,
		accounts:    make(map[string]jobAccounts),
		cancels:     make(map[string]*atomic.Bool),
	}
}

// CreateMigrationJob validates the request, persists a new pending job, and
// returns it synchronously. Execution is started separately via Start.
func (m *Manager) CreateMigrationJob(ctx context.Context, source, destination models.AccountCredentials, opts models.MigrationOptions, counts models.DataCounts) (*models.MigrationJob, error) {
	if len(opts.Categories) == 0 {
		return nil, ErrNoCategories
	}
	for _, c := range opts.Categories {
		if _, ok := m.sources[c]; !ok {
			return nil, fmt.Errorf("unknown category %q", c)
		}
	}
	if !source.Complete() || !destination.Complete() {
		return nil, errors.New("source and destination accounts require apiKey and locationId")
	}

	job := models.NewMigrationJob(opts, counts)
	if err := m.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}

	m.mu.Lock()
	m.accounts[job.ID] = jobAccounts{source: source, destination: destination}
	m.cancels[job.ID] = &atomic.Bool{}
	m.mu.Unlock()

	m.logger.Info("migration job created",
		"job", job.ID, "categories", len(opts.Categories),
		"policy", opts.ConflictPolicy, "dryRun", opts.DryRun)
	return job.Clone(), nil
}

// Start transitions a pending job to running, persists that transition, and
// then detaches execution onto a background goroutine. The caller's request
// returns as soon as Start does; a crash after this point leaves a job
// observably stuck, which StalePending surfaces.
func (m *Manager) Start(ctx context.Context, jobID string) error {
	job, err := m.updateJob(ctx, jobID, func(j *models.MigrationJob) error {
		if j.Status != models.StatusPending {
			return fmt.Errorf("job %s is %s, not pending", j.ID, j.Status)
		}
		now := time.Now().UTC()
		j.Status = models.StatusRunning
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	accounts, ok := m.accounts[jobID]
	m.mu.Unlock()
	if !ok {
		// Credentials are memory-only, so a job created before a restart
		// cannot be executed anymore.
		m.failJob(ctx, jobID, "account credentials no longer available")
		return fmt.Errorf("job %s: account credentials no longer available", jobID)
	}

	go m.run(context.Background(), job, accounts)
	return nil
}

// run executes every selected category with bounded parallelism, then
// computes and persists the terminal status.
func (m *Manager) run(ctx context.Context, job *models.MigrationJob, accounts jobAccounts) {
	m.logger.Info("migration started", "job", job.ID)

	sem := make(chan struct{}, m.maxParallel)
	var wg sync.WaitGroup
	var listFailures atomic.Int32

	for _, name := range models.AllCategories() {
		if !job.Options.HasCategory(name) {
			continue
		}
		cat := m.sources[name]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if !m.runCategory(ctx, job, accounts, cat) {
				listFailures.Add(1)
			}
		}()
	}
	wg.Wait()

	final, err := m.updateJob(ctx, job.ID, func(j *models.MigrationJob) error {
		now := time.Now().UTC()
		j.FinishedAt = &now
		j.Status = terminalStatus(j, int(listFailures.Load()))
		if j.Status == models.StatusFailed && j.Error == "" {
			j.Error = "no category transferred any records"
		}
		return nil
	})
	if err != nil {
		m.logger.Error("persisting final job state", "job", job.ID, "err", err)
		return
	}

	m.mu.Lock()
	delete(m.accounts, job.ID)
	delete(m.cancels, job.ID)
	m.mu.Unlock()

	m.logger.Info("migration finished", "job", final.ID, "status", final.Status)
}

// runCategory drives one category worker and funnels its progress into the
// job document. Returns false when the source listing itself failed.
func (m *Manager) runCategory(ctx context.Context, job *models.MigrationJob, accounts jobAccounts, cat CategorySource) bool {
	name := cat.Name()
	hooks := transferHooks{
		cancelled: func() bool { return m.cancelObserved(ctx, job.ID) },
		onTotal: func(total int) {
			m.updateCategory(ctx, job.ID, name, func(p *models.CategoryProgress) {
				p.Total = total
			})
		},
		onRecord: func(ok bool, errMsg string) {
			m.updateCategory(ctx, job.ID, name, func(p *models.CategoryProgress) {
				if ok {
					p.RecordSuccess()
				} else {
					p.RecordError(truncateErr(errMsg))
				}
			})
		},
	}

	_, err := transferCategory(ctx, cat, accounts.source, accounts.destination,
		job.Options.ConflictPolicy, job.Options.DryRun, hooks)
	if err != nil {
		m.logger.Warn("category transfer aborted", "job", job.ID, "category", name, "err", err)
		m.updateCategory(ctx, job.ID, name, func(p *models.CategoryProgress) {
			p.Errors = append(p.Errors, truncateErr(err.Error()))
		})
		return false
	}
	return true
}

// terminalStatus applies the state machine rules: cancellation wins, a job
// where nothing succeeded and something went wrong is failed, and partial
// per-category failure still completes.
func terminalStatus(j *models.MigrationJob, listFailures int) string {
	if j.CancelRequested {
		return models.StatusCancelled
	}
	var succeeded, failed int
	for _, p := range j.CategoryProgress {
		succeeded += p.Succeeded
		failed += p.Failed
	}
	if succeeded == 0 && (failed > 0 || (listFailures > 0 && listFailures == len(j.CategoryProgress))) {
		return models.StatusFailed
	}
	return models.StatusCompleted
}

// GetMigrationJob returns the job, or nil if unknown.
func (m *Manager) GetMigrationJob(ctx context.Context, jobID string) (*models.MigrationJob, error) {
	return m.store.Get(ctx, jobID)
}

// CancelMigration flags a non-terminal job for cooperative cancellation.
// Cancelling a terminal job, or a job twice, is a harmless no-op. Returns nil
// when the job does not exist.
func (m *Manager) CancelMigration(ctx context.Context, jobID string) (*models.MigrationJob, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil || job == nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}

	job, err = m.updateJob(ctx, jobID, func(j *models.MigrationJob) error {
		j.CancelRequested = true
		if j.Status == models.StatusPending {
			// Never started; finish it right here.
			now := time.Now().UTC()
			j.Status = models.StatusCancelled
			j.FinishedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if flag, ok := m.cancels[jobID]; ok {
		flag.Store(true)
	}
	if job.IsTerminal() {
		// Cancelled before it ever ran; release the held credentials.
		delete(m.accounts, jobID)
		delete(m.cancels, jobID)
	}
	m.mu.Unlock()

	m.logger.Info("migration cancel requested", "job", jobID)
	return job, nil
}

// GetMigrationHistory returns the audit projection of every finished job,
// most recent first.
func (m *Manager) GetMigrationHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(jobs))
	for _, j := range jobs {
		if j.IsTerminal() {
			entries = append(entries, models.HistoryEntryFromJob(j))
		}
	}
	return entries, nil
}

// StalePending returns jobs stuck in pending past the threshold — evidence
// of a crash between creation and execution start.
func (m *Manager) StalePending(ctx context.Context, olderThan time.Duration) ([]*models.MigrationJob, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	var stale []*models.MigrationJob
	for _, j := range jobs {
		if j.Status == models.StatusPending && j.CreatedAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

// cancelObserved is the predicate workers poll between records. The
// in-memory flag avoids a store read per record; the persisted field is the
// source of truth when the flag is gone.
func (m *Manager) cancelObserved(ctx context.Context, jobID string) bool {
	m.mu.Lock()
	flag, ok := m.cancels[jobID]
	m.mu.Unlock()
	if ok {
		return flag.Load()
	}
	job, err := m.store.Get(ctx, jobID)
	if err != nil || job == nil {
		return false
	}
	return job.CancelRequested
}

// updateJob runs one locked read-modify-write cycle against the store and
// returns the persisted document.
func (m *Manager) updateJob(ctx context.Context, jobID string, mutate func(*models.MigrationJob) error) (*models.MigrationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job %s: %w", jobID, err)
	}
	return job, nil
}

// updateCategory mutates one category's slice of the progress map. Store
// failures here are logged, not fatal: progress recording is at-least-once
// and the next update rewrites the whole document.
func (m *Manager) updateCategory(ctx context.Context, jobID string, name models.Category, mutate func(*models.CategoryProgress)) {
	_, err := m.updateJob(ctx, jobID, func(j *models.MigrationJob) error {
		p := j.CategoryProgress[name]
		mutate(&p)
		j.CategoryProgress[name] = p
		return nil
	})
	if err != nil {
		m.logger.Error("persisting progress", "job", jobID, "category", name, "err", err)
	}
}

// failJob flips a job to failed with an orchestration error.
func (m *Manager) failJob(ctx context.Context, jobID, reason string) {
	_, err := m.updateJob(ctx, jobID, func(j *models.MigrationJob) error {
		now := time.Now().UTC()
		j.Status = models.StatusFailed
		j.Error = reason
		j.FinishedAt = &now
		return nil
	})
	if err != nil {
		m.logger.Error("marking job failed", "job", jobID, "err", err)
	}
}
