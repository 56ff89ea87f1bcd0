package crm

import (
	"strings"
	"testing"
	"time"

	"github.com/crmops/crm-migrator/internal/models"
)

func TestCategories_CoverEveryCategory(t *testing.T) {
	c := NewClient("http://example.invalid", "v", 10, 1, time.Second)
	endpoints := c.Categories()

	byName := make(map[models.Category]bool)
	for _, e := range endpoints {
		byName[e.Name()] = true
	}
	for _, want := range models.AllCategories() {
		if !byName[want] {
			t.Errorf("no endpoint for category %q", want)
		}
	}
	if len(endpoints) != len(models.AllCategories()) {
		t.Errorf("len(endpoints) = %d, want %d", len(endpoints), len(models.AllCategories()))
	}
}

func TestNaturalKey_ContactEmailWithPhoneFallback(t *testing.T) {
	c := NewClient("http://example.invalid", "v", 10, 1, time.Second)
	contacts, err := c.Category(models.CategoryContacts)
	if err != nil {
		t.Fatal(err)
	}

	if key := contacts.NaturalKey(Record{"email": "Jane@Example.com"}); key != "jane@example.com" {
		t.Errorf("key = %q, want lowercased email", key)
	}
	if key := contacts.NaturalKey(Record{"phone": "+15550100"}); key != "+15550100" {
		t.Errorf("key = %q, want phone fallback", key)
	}
	if key := contacts.NaturalKey(Record{"firstName": "Jane"}); key != "" {
		t.Errorf("key = %q, want empty when no email or phone", key)
	}
}

func TestNaturalKey_TagsByName(t *testing.T) {
	c := NewClient("http://example.invalid", "v", 10, 1, time.Second)
	tags, err := c.Category(models.CategoryTags)
	if err != nil {
		t.Fatal(err)
	}
	if key := tags.NaturalKey(Record{"name": "VIP"}); key != "vip" {
		t.Errorf("key = %q, want vip", key)
	}
}

func TestDisambiguated(t *testing.T) {
	c := NewClient("http://example.invalid", "v", 10, 1, time.Second)

	contacts, _ := c.Category(models.CategoryContacts)
	rec := Record{"email": "jane@example.com", "firstName": "Jane"}
	dup := contacts.Disambiguated(rec)
	if dup.StringField("email") == "jane@example.com" {
		t.Error("Disambiguated should alter the email")
	}
	if !strings.HasSuffix(dup.StringField("email"), "@example.com") {
		t.Errorf("email domain should survive, got %q", dup.StringField("email"))
	}
	if rec.StringField("email") != "jane@example.com" {
		t.Error("Disambiguated must not mutate the original record")
	}

	tags, _ := c.Category(models.CategoryTags)
	dupTag := tags.Disambiguated(Record{"name": "VIP"})
	if dupTag.StringField("name") == "VIP" {
		t.Error("Disambiguated should alter the name")
	}
}

func TestWritePayload_StripsServerFields(t *testing.T) {
	rec := Record{"id": "x", "dateAdded": "2024-01-01", "locationId": "src", "name": "VIP"}
	out := writePayload(rec, "dst")
	if _, ok := out["id"]; ok {
		t.Error("id should be stripped")
	}
	if _, ok := out["dateAdded"]; ok {
		t.Error("dateAdded should be stripped")
	}
	if out["locationId"] != "dst" {
		t.Errorf("locationId = %v, want dst", out["locationId"])
	}
	if rec["locationId"] != "src" {
		t.Error("writePayload must not mutate the original record")
	}
}
