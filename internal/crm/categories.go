package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crmops/crm-migrator/internal/models"
)

// catSpec describes one REST collection: where it lives, which envelope key
// holds its records, and how records are matched at a destination. Natural
// keys follow the platform's uniqueness constraints: contacts and users are
// keyed by email, everything else by name.
type catSpec struct {
	name        models.Category
	path        string
	responseKey string
	// keyField is the record field holding the natural key; keyParam is the
	// query parameter used to look it up at the destination.
	keyField string
	keyParam string
	// fallbackField is tried when keyField is empty (contacts without email
	// match by phone).
	fallbackField string
	fallbackParam string
}

var catSpecs = []catSpec{
	{name: models.CategoryContacts, path: "/contacts/", responseKey: "contacts",
		keyField: "email", keyParam: "email", fallbackField: "phone", fallbackParam: "phone"},
	{name: models.CategoryCalendars, path: "/calendars/", responseKey: "calendars",
		keyField: "name", keyParam: "name"},
	{name: models.CategoryWorkflows, path: "/workflows/", responseKey: "workflows",
		keyField: "name", keyParam: "name"},
	{name: models.CategoryOpportunities, path: "/opportunities/", responseKey: "opportunities",
		keyField: "name", keyParam: "name"},
	{name: models.CategoryForms, path: "/forms/", responseKey: "forms",
		keyField: "name", keyParam: "name"},
	{name: models.CategorySurveys, path: "/surveys/", responseKey: "surveys",
		keyField: "name", keyParam: "name"},
	{name: models.CategoryTags, path: "/tags/", responseKey: "tags",
		keyField: "name", keyParam: "name"},
	{name: models.CategoryUsers, path: "/users/", responseKey: "users",
		keyField: "email", keyParam: "email"},
	{name: models.CategoryCompanies, path: "/companies/", responseKey: "companies",
		keyField: "name", keyParam: "name"},
}

// CategoryEndpoint binds one catSpec to a Client, giving the migration layer
// a uniform list/find/create/update surface per category.
type CategoryEndpoint struct {
	client *Client
	spec   catSpec
}

// Categories returns one endpoint per migratable category, in transfer order.
func (c *Client) Categories() []*CategoryEndpoint {
	endpoints := make([]*CategoryEndpoint, 0, len(catSpecs))
	for _, spec := range catSpecs {
		endpoints = append(endpoints, &CategoryEndpoint{client: c, spec: spec})
	}
	return endpoints
}

// Category returns the endpoint for a single category.
func (c *Client) Category(name models.Category) (*CategoryEndpoint, error) {
	for _, spec := range catSpecs {
		if spec.name == name {
			return &CategoryEndpoint{client: c, spec: spec}, nil
		}
	}
	return nil, fmt.Errorf("no endpoint for category %q", name)
}

// Name identifies the category this endpoint serves.
func (e *CategoryEndpoint) Name() models.Category { return e.spec.name }

// List fetches every record of the category from one account, in
// creation-time ascending order.
func (e *CategoryEndpoint) List(ctx context.Context, acct models.AccountCredentials) ([]Record, error) {
	return e.client.ListAll(ctx, acct, e.spec.path, e.spec.responseKey)
}

// Count returns the number of records of the category at one account.
func (e *CategoryEndpoint) Count(ctx context.Context, acct models.AccountCredentials) (int, error) {
	return e.client.Count(ctx, acct, e.spec.path, e.spec.responseKey)
}

// NaturalKey derives the matching key for a record, or "" when the record
// carries none.
func (e *CategoryEndpoint) NaturalKey(r Record) string {
	if v := r.StringField(e.spec.keyField); v != "" {
		return strings.ToLower(v)
	}
	if e.spec.fallbackField != "" {
		return strings.ToLower(r.StringField(e.spec.fallbackField))
	}
	return ""
}

// Find looks up a record by natural key at the given account. Returns nil if
// absent.
func (e *CategoryEndpoint) Find(ctx context.Context, acct models.AccountCredentials, key string) (Record, error) {
	rec, err := e.client.FindBy(ctx, acct, e.spec.path, e.spec.responseKey, e.spec.keyParam, key)
	if err != nil || rec != nil {
		return rec, err
	}
	if e.spec.fallbackParam != "" {
		return e.client.FindBy(ctx, acct, e.spec.path, e.spec.responseKey, e.spec.fallbackParam, key)
	}
	return nil, nil
}

// Create writes a new record at the destination account.
func (e *CategoryEndpoint) Create(ctx context.Context, acct models.AccountCredentials, r Record) error {
	_, err := e.client.Post(ctx, acct, e.spec.path, writePayload(r, acct.LocationID))
	return err
}

// Update overwrites an existing destination record with the source's fields.
func (e *CategoryEndpoint) Update(ctx context.Context, acct models.AccountCredentials, existing, r Record) error {
	id := existing.ID()
	if id == "" {
		return fmt.Errorf("%s: destination record has no id", e.spec.name)
	}
	_, err := e.client.Put(ctx, acct, e.spec.path+id, writePayload(r, acct.LocationID))
	return err
}

// Disambiguated returns a copy of r with its natural key altered so a
// createNew conflict policy can insert a duplicate: email keys get a plus
// tag, name keys get an import suffix.
func (e *CategoryEndpoint) Disambiguated(r Record) Record {
	cp := r.Clone()
	stamp := time.Now().UTC().Unix()
	switch e.spec.keyField {
	case "email":
		if email := r.StringField("email"); email != "" {
			if at := strings.Index(email, "@"); at > 0 {
				cp["email"] = fmt.Sprintf("%s+import%d%s", email[:at], stamp, email[at:])
			}
		}
	default:
		if name := r.StringField(e.spec.keyField); name != "" {
			cp[e.spec.keyField] = fmt.Sprintf("%s (imported %d)", name, stamp)
		}
	}
	return cp
}

// Ping issues the lightweight read used for credential validation: fetch the
// account's own location document.
func (c *Client) Ping(ctx context.Context, acct models.AccountCredentials) error {
	_, err := c.Get(ctx, acct, "/locations/"+acct.LocationID, nil)
	return err
}
