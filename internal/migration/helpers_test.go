package migration

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/models"
	"github.com/crmops/crm-migrator/internal/store"
)

// fakeCategory is an in-memory CategorySource double that counts destination
// writes so tests can assert on dry-run and conflict-policy behavior.
type fakeCategory struct {
	name     models.Category
	keyField string // defaults to "name"

	mu      sync.Mutex
	source  []crm.Record
	dest    map[string]crm.Record
	listErr error
	failKey string // natural key whose create/update always fails

	creates int
	updates int
	delay   time.Duration
}

func newFakeCategory(name models.Category, source []crm.Record, destKeys ...string) *fakeCategory {
	f := &fakeCategory{
		name:     name,
		keyField: "name",
		source:   source,
		dest:     make(map[string]crm.Record),
	}
	for _, k := range destKeys {
		f.dest[k] = crm.Record{"id": "dest-" + k, f.keyField: k}
	}
	return f
}

func (f *fakeCategory) Name() models.Category { return f.name }

func (f *fakeCategory) List(ctx context.Context, acct models.AccountCredentials) ([]crm.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.source, nil
}

func (f *fakeCategory) Count(ctx context.Context, acct models.AccountCredentials) (int, error) {
	if f.listErr != nil {
		return 0, f.listErr
	}
	return len(f.source), nil
}

func (f *fakeCategory) NaturalKey(r crm.Record) string {
	return r.StringField(f.keyField)
}

func (f *fakeCategory) Find(ctx context.Context, acct models.AccountCredentials, key string) (crm.Record, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.dest[key]; ok {
		return rec, nil
	}
	return nil, nil
}

func (f *fakeCategory) Create(ctx context.Context, acct models.AccountCredentials, r crm.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.NaturalKey(r)
	if key != "" && key == f.failKey {
		return fmt.Errorf("remote rejected %q", key)
	}
	f.creates++
	f.dest[key] = r
	return nil
}

func (f *fakeCategory) Update(ctx context.Context, acct models.AccountCredentials, existing, r crm.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key := f.NaturalKey(r); key == f.failKey {
		return fmt.Errorf("remote rejected %q", key)
	}
	f.updates++
	f.dest[f.NaturalKey(existing)] = r
	return nil
}

func (f *fakeCategory) Disambiguated(r crm.Record) crm.Record {
	cp := r.Clone()
	cp[f.keyField] = r.StringField(f.keyField) + " (copy)"
	return cp
}

func (f *fakeCategory) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates + f.updates
}

// namedRecords builds source records keyed by name.
func namedRecords(names ...string) []crm.Record {
	records := make([]crm.Record, 0, len(names))
	for i, n := range names {
		records = append(records, crm.Record{"id": fmt.Sprintf("src-%d", i), "name": n})
	}
	return records
}

// fakePinger validates credentials against a fixed set of accepted API keys.
type fakePinger struct {
	goodKeys map[string]bool
}

func (p *fakePinger) Ping(ctx context.Context, acct models.AccountCredentials) error {
	if p.goodKeys[acct.APIKey] {
		return nil
	}
	return &crm.HTTPError{Method: "GET", Path: "/locations/" + acct.LocationID, StatusCode: 401, Body: "invalid api key"}
}

var (
	testSource = models.AccountCredentials{APIKey: "src-key", LocationID: "src-loc"}
	testDest   = models.AccountCredentials{APIKey: "dst-key", LocationID: "dst-loc"}
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestManager(maxParallel int, cats ...CategorySource) (*Manager, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewManager(st, cats, testLogger(), maxParallel), st
}
