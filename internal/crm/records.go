package crm

// Record is one CRM object as returned by the platform, shape unknown ahead
// of time.
type Record map[string]interface{}

// ID returns the record's platform identifier.
func (r Record) ID() string {
	return r.StringField("id")
}

// StringField safely extracts a string field, returning "" if absent.
func (r Record) StringField(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy safe to mutate before a write call.
func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// serverManagedFields are set by the platform and must not be echoed back on
// create or update calls.
var serverManagedFields = []string{"id", "dateAdded", "dateUpdated", "locationId"}

// writePayload strips server-managed fields and stamps the destination
// location.
func writePayload(r Record, locationID string) Record {
	cp := r.Clone()
	for _, f := range serverManagedFields {
		delete(cp, f)
	}
	cp["locationId"] = locationID
	return cp
}
