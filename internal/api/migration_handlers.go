package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crmops/crm-migrator/internal/migration"
	"github.com/crmops/crm-migrator/internal/models"
)

// ValidateAccounts checks both credential sets with one read-only call each.
func (s *Server) ValidateAccounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceAccount      models.AccountCredentials `json:"sourceAccount"`
		DestinationAccount models.AccountCredentials `json:"destinationAccount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	result := s.Validator.ValidateAccounts(r.Context(), req.SourceAccount, req.DestinationAccount)
	writeData(w, http.StatusOK, result)
}

// AnalyzeAccount counts a source account's records per category.
func (s *Server) AnalyzeAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceAccount models.AccountCredentials `json:"sourceAccount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !req.SourceAccount.Complete() {
		writeError(w, http.StatusBadRequest, "sourceAccount requires apiKey and locationId")
		return
	}
	result := s.Analyzer.AnalyzeSource(r.Context(), req.SourceAccount)
	writeData(w, http.StatusOK, result)
}

// ExportAccount serializes an entire source account to a snapshot document.
func (s *Server) ExportAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceAccount models.AccountCredentials `json:"sourceAccount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !req.SourceAccount.Complete() {
		writeError(w, http.StatusBadRequest, "sourceAccount requires apiKey and locationId")
		return
	}
	doc, err := s.Exporter.Export(r.Context(), req.SourceAccount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, doc)
}

// startRequest carries raw category names so unknown ones can be rejected
// instead of silently decoded.
type startRequest struct {
	SourceAccount      models.AccountCredentials `json:"sourceAccount"`
	DestinationAccount models.AccountCredentials `json:"destinationAccount"`
	Options            struct {
		Categories     []string              `json:"categories"`
		ConflictPolicy models.ConflictPolicy `json:"conflictPolicy"`
		DryRun         bool                  `json:"dryRun"`
	} `json:"options"`
	DataCounts models.DataCounts `json:"dataCounts"`
}

// StartMigration creates a job, persists its transition to running, hands
// execution to the background, and returns the job ID immediately.
func (s *Server) StartMigration(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	opts := models.MigrationOptions{
		ConflictPolicy: req.Options.ConflictPolicy,
		DryRun:         req.Options.DryRun,
	}
	for _, name := range req.Options.Categories {
		c, err := models.ParseCategory(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Categories = append(opts.Categories, c)
	}

	if !req.SourceAccount.Complete() || !req.DestinationAccount.Complete() {
		writeError(w, http.StatusBadRequest, "sourceAccount and destinationAccount require apiKey and locationId")
		return
	}

	job, err := s.Manager.CreateMigrationJob(r.Context(), req.SourceAccount, req.DestinationAccount, opts, req.DataCounts)
	if err != nil {
		if errors.Is(err, migration.ErrNoCategories) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if err := s.Manager.Start(r.Context(), job.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeData(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": models.StatusRunning,
	})
}

// GetMigrationStatus returns the full job document, including progress of a
// still-running job.
func (s *Server) GetMigrationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.Manager.GetMigrationJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeData(w, http.StatusOK, job)
}

// CancelMigration requests cooperative cancellation. Repeats and cancels of
// terminal jobs succeed without effect.
func (s *Server) CancelMigration(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := s.Manager.CancelMigration(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": job.Status})
}

// GetMigrationHistory lists finished jobs, most recent first.
func (s *Server) GetMigrationHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Manager.GetMigrationHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, entries)
}
