package models

// AccountCredentials identify one CRM sub-account (location). They are
// supplied per request and held in memory only for the lifetime of the
// operation that needs them; they are never written to the job store.
type AccountCredentials struct {
	APIKey     string `json:"apiKey"`
	LocationID string `json:"locationId"`
}

// Complete reports whether both fields are present.
func (a AccountCredentials) Complete() bool {
	return a.APIKey != "" && a.LocationID != ""
}

// ValidationResult is the outcome of checking a source/destination pair.
type ValidationResult struct {
	IsValid       bool     `json:"isValid"`
	SourceOK      bool     `json:"sourceOk"`
	DestinationOK bool     `json:"destinationOk"`
	Errors        []string `json:"errors"`
}
