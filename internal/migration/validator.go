package migration

import (
	"context"
	"fmt"

	"github.com/crmops/crm-migrator/internal/models"
)

// Validator checks that source and destination credentials each resolve to a
// reachable account. Both sides are probed independently so one bad key does
// not mask the other's state.
type Validator struct {
	pinger Pinger
}

// NewValidator creates a Validator backed by the given platform client.
func NewValidator(p Pinger) *Validator {
	return &Validator{pinger: p}
}

// ValidateAccounts issues one read-only call per side. Credential failures
// are folded into the result, never returned as errors; the call has no side
// effects and is safe to repeat.
func (v *Validator) ValidateAccounts(ctx context.Context, source, destination models.AccountCredentials) models.ValidationResult {
	result := models.ValidationResult{Errors: []string{}}

	result.SourceOK = v.checkSide(ctx, "source", source, &result.Errors)
	result.DestinationOK = v.checkSide(ctx, "destination", destination, &result.Errors)
	result.IsValid = result.SourceOK && result.DestinationOK
	return result
}

func (v *Validator) checkSide(ctx context.Context, side string, acct models.AccountCredentials, errs *[]string) bool {
	if !acct.Complete() {
		*errs = append(*errs, fmt.Sprintf("%s account: apiKey and locationId are required", side))
		return false
	}
	if err := v.pinger.Ping(ctx, acct); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s account: %v", side, err))
		return false
	}
	return true
}
