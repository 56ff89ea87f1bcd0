package models

import "fmt"

// Category is one logical type of CRM data migrated as an independent unit.
type Category string

const (
	CategoryContacts      Category = "contacts"
	CategoryCalendars     Category = "calendars"
	CategoryWorkflows     Category = "workflows"
	CategoryOpportunities Category = "opportunities"
	CategoryForms         Category = "forms"
	CategorySurveys       Category = "surveys"
	CategoryTags          Category = "tags"
	CategoryUsers         Category = "users"
	CategoryCompanies     Category = "companies"
)

// AllCategories lists every migratable category in transfer order.
func AllCategories() []Category {
	return []Category{
		CategoryContacts, CategoryCalendars, CategoryWorkflows,
		CategoryOpportunities, CategoryForms, CategorySurveys,
		CategoryTags, CategoryUsers, CategoryCompanies,
	}
}

// ParseCategory validates a category name from a request body.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ConflictPolicy controls what happens when a source record's natural key
// already exists at the destination.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictCreateNew ConflictPolicy = "createNew"
)

// Normalize maps the empty value to the default policy.
func (p ConflictPolicy) Normalize() ConflictPolicy {
	switch p {
	case ConflictOverwrite, ConflictCreateNew:
		return p
	default:
		return ConflictSkip
	}
}

// MigrationOptions are supplied at job start and immutable for the job's lifetime.
type MigrationOptions struct {
	Categories     []Category     `json:"categories" bson:"categories"`
	ConflictPolicy ConflictPolicy `json:"conflictPolicy" bson:"conflictPolicy"`
	DryRun         bool           `json:"dryRun" bson:"dryRun"`
}

// HasCategory reports whether c was selected for this run.
func (o MigrationOptions) HasCategory(c Category) bool {
	for _, sel := range o.Categories {
		if sel == c {
			return true
		}
	}
	return false
}

// CategoryCount holds the analyzer's estimate for one category.
type CategoryCount struct {
	EstimatedCount int `json:"estimatedCount" bson:"estimatedCount"`
}

// DataCounts maps categories to their estimated record counts.
type DataCounts map[Category]CategoryCount

// AnalysisResult is the outcome of walking a source account read-only.
type AnalysisResult struct {
	Success                  bool       `json:"success"`
	Counts                   DataCounts `json:"counts"`
	EstimatedDurationSeconds int        `json:"estimatedDurationSeconds"`
	Error                    string     `json:"error,omitempty"`
	Notes                    []string   `json:"notes,omitempty"`
}
