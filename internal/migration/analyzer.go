package migration

import (
	"context"
	"fmt"
	"math"

	"github.com/crmops/crm-migrator/internal/models"
)

// defaultSecondsPerRecord is the advisory throughput constant used for the
// duration estimate. Tunable via NewAnalyzer.
const defaultSecondsPerRecord = 0.5

// Analyzer walks a source account read-only and produces per-category record
// counts plus a time estimate.
type Analyzer struct {
	categories       []CategorySource
	secondsPerRecord float64
}

// NewAnalyzer creates an Analyzer over the given categories. A non-positive
// secondsPerRecord selects the default throughput constant.
func NewAnalyzer(categories []CategorySource, secondsPerRecord float64) *Analyzer {
	if secondsPerRecord <= 0 {
		secondsPerRecord = defaultSecondsPerRecord
	}
	return &Analyzer{categories: categories, secondsPerRecord: secondsPerRecord}
}

// AnalyzeSource counts records per category. A category that cannot be
// counted degrades to 0 with a note so the others still get estimated.
func (a *Analyzer) AnalyzeSource(ctx context.Context, source models.AccountCredentials) models.AnalysisResult {
	result := models.AnalysisResult{
		Counts: make(models.DataCounts, len(a.categories)),
	}
	if !source.Complete() {
		result.Error = "source account: apiKey and locationId are required"
		return result
	}

	total := 0
	for _, cat := range a.categories {
		n, err := cat.Count(ctx, source)
		if err != nil {
			result.Counts[cat.Name()] = models.CategoryCount{EstimatedCount: 0}
			result.Notes = append(result.Notes, fmt.Sprintf("%s: count failed: %v", cat.Name(), err))
			continue
		}
		result.Counts[cat.Name()] = models.CategoryCount{EstimatedCount: n}
		total += n
	}

	result.Success = true
	result.EstimatedDurationSeconds = int(math.Ceil(float64(total) * a.secondsPerRecord))
	return result
}
