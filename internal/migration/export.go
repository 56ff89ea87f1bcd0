package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/models"
)

// ExportDocument is a read-only snapshot of an entire source account: one
// array per category plus notes for anything that could not be read.
type ExportDocument struct {
	LocationID string                           `json:"locationId"`
	ExportedAt time.Time                        `json:"exportedAt"`
	Data       map[models.Category][]crm.Record `json:"data"`
	Notes      []string                         `json:"notes,omitempty"`
}

// Exporter serializes a source account to a structured document, reusing the
// category listing logic and writing nothing anywhere.
type Exporter struct {
	categories []CategorySource
}

// NewExporter creates an Exporter over the given categories.
func NewExporter(categories []CategorySource) *Exporter {
	return &Exporter{categories: categories}
}

// Export lists every category of the source account. A category that fails
// to list degrades to an empty array plus a note; the export never aborts.
func (e *Exporter) Export(ctx context.Context, source models.AccountCredentials) (*ExportDocument, error) {
	if !source.Complete() {
		return nil, fmt.Errorf("source account: apiKey and locationId are required")
	}

	doc := &ExportDocument{
		LocationID: source.LocationID,
		ExportedAt: time.Now().UTC(),
		Data:       make(map[models.Category][]crm.Record, len(e.categories)),
	}
	for _, cat := range e.categories {
		records, err := cat.List(ctx, source)
		if err != nil {
			doc.Data[cat.Name()] = []crm.Record{}
			doc.Notes = append(doc.Notes, fmt.Sprintf("%s: export failed: %v", cat.Name(), err))
			continue
		}
		if records == nil {
			records = []crm.Record{}
		}
		doc.Data[cat.Name()] = records
	}
	return doc, nil
}
