package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const nppesOrgPayload = `{
  "result_count": 1,
  "results": [{
    "number": "1234567890",
    "basic": {
      "organization_name": "HILL COUNTRY FAMILY MEDICINE",
      "enumeration_date": "2010-05-05",
      "last_updated": "2024-01-15"
    },
    "addresses": [
      {"address_purpose": "MAILING", "address_1": "PO BOX 100", "city": "Austin", "state": "TX", "postal_code": "78767"},
      {"address_purpose": "LOCATION", "address_1": "4501 Ranch Road 620", "address_2": "Suite B", "city": "Austin", "state": "TX", "postal_code": "787321234", "telephone_number": "512-555-0100"}
    ],
    "taxonomies": [
      {"code": "207Q00000X", "desc": "Family Medicine", "primary": true}
    ],
    "practiceLocations": [
      {"address_1": "200 Elm St", "city": "Lakeway", "state": "TX", "postal_code": "78734"}
    ]
  }]
}`

func TestFetchOrganizationNPPES(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("number") != "1234567890" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(nppesOrgPayload))
	}))
	defer srv.Close()

	nlm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[0,[],null,[]]`))
	}))
	defer nlm.Close()

	c := NewClient(Config{NPPESBaseURL: srv.URL, NLMBaseURL: nlm.URL})
	rec, err := c.FetchOrganization(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("FetchOrganization: %v", err)
	}
	if rec.OrgName != "HILL COUNTRY FAMILY MEDICINE" {
		t.Errorf("org name = %q", rec.OrgName)
	}
	if rec.PracticeLine1 != "4501 Ranch Road 620" {
		t.Errorf("mailing address chosen over location: %q", rec.PracticeLine1)
	}
	if rec.PracticeZip != "78732" {
		t.Errorf("zip = %q, want 5 digits", rec.PracticeZip)
	}
	if rec.TaxonomyClass != "Family Medicine" {
		t.Errorf("taxonomy = %q", rec.TaxonomyClass)
	}
	if len(rec.SecondaryAddresses) != 1 || rec.SecondaryAddresses[0].City != "Lakeway" {
		t.Errorf("secondary addresses = %+v", rec.SecondaryAddresses)
	}
}

func TestFetchOrganizationNLMFallback(t *testing.T) {
	nppes := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer nppes.Close()

	nlm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,["1234567890"],null,[["1234567890","HILL COUNTRY FAMILY MEDICINE","ORG","4501 Ranch Road 620, Suite B, Austin, TX 78732","512-555-0100","207Q00000X","Family Medicine","2010-05-05","2024-01-15"]]]`))
	}))
	defer nlm.Close()

	c := NewClient(Config{NPPESBaseURL: nppes.URL, NLMBaseURL: nlm.URL})
	rec, err := c.FetchOrganization(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("FetchOrganization: %v", err)
	}
	if rec.PracticeCity != "Austin" || rec.PracticeState != "TX" || rec.PracticeZip != "78732" {
		t.Errorf("parsed address = %+v", rec)
	}
	if rec.TaxonomyClass != "Family Medicine" {
		t.Errorf("taxonomy = %q", rec.TaxonomyClass)
	}
}

func TestFetchOrganizationNotFound(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result_count": 0, "results": []}`))
	}))
	defer empty.Close()

	nlm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[0,[],null,[]]`))
	}))
	defer nlm.Close()

	c := NewClient(Config{NPPESBaseURL: empty.URL, NLMBaseURL: nlm.URL})
	_, err := c.FetchOrganization(context.Background(), "9999999999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchOrganizationUnavailable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	c := NewClient(Config{NPPESBaseURL: down.URL, NLMBaseURL: down.URL})
	_, err := c.FetchOrganization(context.Background(), "1234567890")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestFetchProvidersByGeo(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("postal_code") != "78732" {
			t.Errorf("expected zip query, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
  "result_count": 2,
  "results": [
    {"number": "111", "basic": {"first_name": "Maria", "last_name": "Gonzalez"},
     "addresses": [{"address_purpose": "LOCATION", "address_1": "1 Main", "city": "Austin", "state": "TX", "postal_code": "78732"}],
     "taxonomies": [{"code": "207Q00000X", "desc": "Family Medicine", "primary": true}]},
    {"number": "222", "basic": {"first_name": "David", "last_name": "Chen"},
     "addresses": [], "taxonomies": []}
  ]
}`))
	}))
	defer srv.Close()

	c := NewClient(Config{NPPESBaseURL: srv.URL})
	providers, err := c.FetchProvidersByGeo(context.Background(), "Austin", "TX", "78732-1234")
	if err != nil {
		t.Fatalf("FetchProvidersByGeo: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("got %d providers", len(providers))
	}
	if providers[0].NameFull != "Maria Gonzalez" {
		t.Errorf("name = %q", providers[0].NameFull)
	}
	if calls != 1 {
		t.Errorf("short page should stop pagination, %d calls made", calls)
	}
}

func TestFetchProvidersByGeoNoArea(t *testing.T) {
	c := NewClient(Config{})
	providers, err := c.FetchProvidersByGeo(context.Background(), "", "", "")
	if err != nil || providers != nil {
		t.Errorf("expected empty no-op, got %v, %v", providers, err)
	}
}

func TestParseAddressString(t *testing.T) {
	a := parseAddressString("123 Main St, Suite 100, Austin, TX 78701")
	if a.Line1 != "123 Main St" || a.Line2 != "Suite 100" || a.City != "Austin" ||
		a.State != "TX" || a.Zip != "78701" {
		t.Errorf("parsed = %+v", a)
	}

	b := parseAddressString("500 Oak Rd, Dallas, TX 75201-0001")
	if b.Line1 != "500 Oak Rd" || b.City != "Dallas" || b.Zip != "75201" {
		t.Errorf("parsed = %+v", b)
	}

	if z := parseAddressString(""); z.Line1 != "" {
		t.Errorf("empty input should parse empty, got %+v", z)
	}
}
