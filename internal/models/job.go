package models

import (
	"time"

	"github.com/google/uuid"
)

// Job status values. pending and running are non-terminal; the rest are final.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// maxCategoryErrors bounds how many error strings a category accumulates so a
// pathological source cannot balloon the job document.
const maxCategoryErrors = 25

// CategoryProgress tracks one category's transfer inside a job. It is mutated
// only by the worker responsible for that category.
type CategoryProgress struct {
	Total     int      `json:"total" bson:"total"`
	Processed int      `json:"processed" bson:"processed"`
	Succeeded int      `json:"succeeded" bson:"succeeded"`
	Failed    int      `json:"failed" bson:"failed"`
	Errors    []string `json:"errors" bson:"errors"`
}

// RecordError appends a bounded error message and counts the record as failed.
func (p *CategoryProgress) RecordError(msg string) {
	p.Processed++
	p.Failed++
	if len(p.Errors) < maxCategoryErrors {
		p.Errors = append(p.Errors, msg)
	}
}

// RecordSuccess counts one record as transferred.
func (p *CategoryProgress) RecordSuccess() {
	p.Processed++
	p.Succeeded++
}

// MigrationJob is the central aggregate for one migration run. Credentials are
// deliberately absent: the manager keeps them in memory for running jobs only.
type MigrationJob struct {
	ID               string                        `json:"id" bson:"_id"`
	Status           string                        `json:"status" bson:"status"`
	Options          MigrationOptions              `json:"options" bson:"options"`
	CategoryProgress map[Category]CategoryProgress `json:"categoryProgress" bson:"categoryProgress"`
	CreatedAt        time.Time                     `json:"createdAt" bson:"createdAt"`
	StartedAt        *time.Time                    `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	FinishedAt       *time.Time                    `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
	CancelRequested  bool                          `json:"cancelRequested" bson:"cancelRequested"`
	Error            string                        `json:"error,omitempty" bson:"error,omitempty"`
}

// NewMigrationJob creates a pending job with one progress slot per selected
// category and no others.
func NewMigrationJob(opts MigrationOptions, counts DataCounts) *MigrationJob {
	opts.ConflictPolicy = opts.ConflictPolicy.Normalize()
	job := &MigrationJob{
		ID:               uuid.New().String(),
		Status:           StatusPending,
		Options:          opts,
		CategoryProgress: make(map[Category]CategoryProgress, len(opts.Categories)),
		CreatedAt:        time.Now().UTC(),
	}
	for _, c := range opts.Categories {
		job.CategoryProgress[c] = CategoryProgress{
			Total:  counts[c].EstimatedCount,
			Errors: []string{},
		}
	}
	return job
}

// IsTerminal reports whether the job has reached a final status.
func (j *MigrationJob) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Clone returns a deep copy safe to hand to callers while workers keep
// mutating the original.
func (j *MigrationJob) Clone() *MigrationJob {
	cp := *j
	cp.CategoryProgress = make(map[Category]CategoryProgress, len(j.CategoryProgress))
	for c, p := range j.CategoryProgress {
		p.Errors = append([]string(nil), p.Errors...)
		cp.CategoryProgress[c] = p
	}
	return &cp
}

// HistoryEntry is a read-only projection of a job kept for audit.
type HistoryEntry struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Categories []Category `json:"categories"`
	DryRun     bool       `json:"dryRun"`
	Processed  int        `json:"processed"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// HistoryEntryFromJob flattens a job into its audit projection.
func HistoryEntryFromJob(j *MigrationJob) HistoryEntry {
	e := HistoryEntry{
		ID:         j.ID,
		Status:     j.Status,
		Categories: j.Options.Categories,
		DryRun:     j.Options.DryRun,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.FinishedAt,
	}
	for _, p := range j.CategoryProgress {
		e.Processed += p.Processed
		e.Succeeded += p.Succeeded
		e.Failed += p.Failed
	}
	return e
}
