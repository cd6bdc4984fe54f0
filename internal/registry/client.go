package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNotFound means the registry answered but has no record for the
// identifier. Distinct from a transport or upstream failure, which callers
// treat as "registry unavailable".
var ErrNotFound = errors.New("registry: provider not found")

const (
	nppesBaseURL = "https://npiregistry.cms.hhs.gov/api/"
	nlmBaseURL   = "https://clinicaltables.nlm.nih.gov/api/npi_org/v3/search"

	geoPageSize = 200
	geoMaxPages = 3
)

// Config holds the registry client configuration.
type Config struct {
	NPPESBaseURL string
	NLMBaseURL   string
	Timeout      time.Duration
	Rate         rate.Limit
	Burst        int
}

// Client fetches registry records.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient initializes a registry Client.
func NewClient(cfg Config) *Client {
	if cfg.NPPESBaseURL == "" {
		cfg.NPPESBaseURL = nppesBaseURL
	}
	if cfg.NLMBaseURL == "" {
		cfg.NLMBaseURL = nlmBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Rate > 0 {
		c.limiter = rate.NewLimiter(cfg.Rate, cfg.Burst)
	}
	return c
}

// FetchOrganization resolves an organization NPI, querying NPPES and NLM
// concurrently. NPPES wins when both answer since it carries secondary
// practice locations; NLM fills in when NPPES is down.
func (c *Client) FetchOrganization(ctx context.Context, npi string) (*OrgRecord, error) {
	type outcome struct {
		rec *OrgRecord
		err error
	}
	nppesCh := make(chan outcome, 1)
	nlmCh := make(chan outcome, 1)

	go func() {
		rec, err := c.fetchFromNPPES(ctx, npi)
		nppesCh <- outcome{rec, err}
	}()
	go func() {
		rec, err := c.fetchFromNLM(ctx, npi)
		nlmCh <- outcome{rec, err}
	}()

	nppes := <-nppesCh
	nlm := <-nlmCh

	if nppes.err == nil {
		return nppes.rec, nil
	}
	if nlm.err == nil {
		logrus.WithField("npi", npi).WithError(nppes.err).
			Warn("NPPES lookup failed, using NLM record")
		return nlm.rec, nil
	}
	if errors.Is(nppes.err, ErrNotFound) || errors.Is(nlm.err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("registry unavailable: %w", nppes.err)
}

// nppesResult mirrors the subset of the NPPES v2.1 payload we consume.
type nppesResult struct {
	Number string `json:"number"`
	Basic  struct {
		OrganizationName string `json:"organization_name"`
		FirstName        string `json:"first_name"`
		LastName         string `json:"last_name"`
		EnumerationDate  string `json:"enumeration_date"`
		LastUpdated      string `json:"last_updated"`
	} `json:"basic"`
	Addresses  []nppesAddress `json:"addresses"`
	Taxonomies []struct {
		Code    string `json:"code"`
		Desc    string `json:"desc"`
		Primary bool   `json:"primary"`
	} `json:"taxonomies"`
	PracticeLocations []struct {
		Address1   string `json:"address_1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
	} `json:"practiceLocations"`
}

type nppesResponse struct {
	ResultCount int           `json:"result_count"`
	Results     []nppesResult `json:"results"`
}

func (c *Client) fetchFromNPPES(ctx context.Context, npi string) (*OrgRecord, error) {
	q := url.Values{}
	q.Set("number", npi)
	q.Set("version", "2.1")

	var payload nppesResponse
	if err := c.getJSON(ctx, c.cfg.NPPESBaseURL+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, ErrNotFound
	}

	r := payload.Results[0]
	rec := &OrgRecord{
		NPI:             r.Number,
		OrgName:         r.Basic.OrganizationName,
		EnumerationDate: r.Basic.EnumerationDate,
		LastUpdateDate:  r.Basic.LastUpdated,
	}
	if rec.NPI == "" {
		rec.NPI = npi
	}
	if rec.OrgName == "" {
		rec.OrgName = strings.TrimSpace(r.Basic.FirstName + " " + r.Basic.LastName)
	}

	addr := pickLocationAddress(r)
	rec.PracticeLine1 = addr.Address1
	rec.PracticeLine2 = addr.Address2
	rec.PracticeCity = addr.City
	rec.PracticeState = addr.State
	rec.PracticeZip = zip5(addr.PostalCode)
	rec.PracticePhone = addr.TelephoneNumber

	for _, t := range r.Taxonomies {
		if t.Primary {
			rec.TaxonomyCode = t.Code
			rec.TaxonomyClass = t.Desc
			break
		}
	}
	if rec.TaxonomyCode == "" && len(r.Taxonomies) > 0 {
		rec.TaxonomyCode = r.Taxonomies[0].Code
		rec.TaxonomyClass = r.Taxonomies[0].Desc
	}

	for _, loc := range r.PracticeLocations {
		rec.SecondaryAddresses = append(rec.SecondaryAddresses, SecondaryAddress{
			Line1: loc.Address1,
			City:  loc.City,
			State: loc.State,
			Zip:   zip5(loc.PostalCode),
		})
	}

	return rec, nil
}

// nppesAddress is one address entry in an NPPES result.
type nppesAddress struct {
	AddressPurpose  string `json:"address_purpose"`
	Address1        string `json:"address_1"`
	Address2        string `json:"address_2"`
	City            string `json:"city"`
	State           string `json:"state"`
	PostalCode      string `json:"postal_code"`
	TelephoneNumber string `json:"telephone_number"`
}

// pickLocationAddress prefers the practice-location entry over mailing
// addresses.
func pickLocationAddress(r nppesResult) nppesAddress {
	for _, a := range r.Addresses {
		if a.AddressPurpose == "LOCATION" {
			return a
		}
	}
	if len(r.Addresses) > 0 {
		return r.Addresses[0]
	}
	return nppesAddress{}
}

// fetchFromNLM queries the NLM Clinical Tables API. Response shape is
// positional: [count, [npis], null, [[field values]]].
func (c *Client) fetchFromNLM(ctx context.Context, npi string) (*OrgRecord, error) {
	q := url.Values{}
	q.Set("terms", npi)
	q.Set("maxList", "1")
	q.Set("df", "NPI,name.full,provider_type,prac_addr.full,prac_addr.phone,tax.code,tax.classification,enumeration_date,last_updated")

	var payload []json.RawMessage
	if err := c.getJSON(ctx, c.cfg.NLMBaseURL+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("registry: malformed NLM response")
	}

	var count int
	if err := json.Unmarshal(payload[0], &count); err != nil || count == 0 {
		return nil, ErrNotFound
	}
	var rows [][]string
	if err := json.Unmarshal(payload[3], &rows); err != nil || len(rows) == 0 {
		return nil, ErrNotFound
	}

	fields := rows[0]
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	addr := parseAddressString(get(3))
	rec := &OrgRecord{
		NPI:             get(0),
		OrgName:         get(1),
		PracticeLine1:   addr.Line1,
		PracticeLine2:   addr.Line2,
		PracticeCity:    addr.City,
		PracticeState:   addr.State,
		PracticeZip:     addr.Zip,
		PracticePhone:   get(4),
		TaxonomyCode:    get(5),
		TaxonomyClass:   get(6),
		EnumerationDate: get(7),
		LastUpdateDate:  get(8),
	}
	if rec.NPI == "" {
		rec.NPI = npi
	}
	return rec, nil
}

// FetchProvidersByGeo lists individually-registered (NPI-1) clinicians for a
// geographic area, zip5 preferred over city+state, paginated.
func (c *Client) FetchProvidersByGeo(ctx context.Context, city, state, zip string) ([]ProviderRecord, error) {
	q := url.Values{}
	q.Set("version", "2.1")
	q.Set("enumeration_type", "NPI-1")
	q.Set("limit", fmt.Sprintf("%d", geoPageSize))

	if z := zip5(zip); z != "" {
		q.Set("postal_code", z)
	} else if city != "" && state != "" {
		q.Set("city", city)
		q.Set("state", state)
	} else {
		return nil, nil
	}

	var providers []ProviderRecord
	for page := 0; page < geoMaxPages; page++ {
		q.Set("skip", fmt.Sprintf("%d", page*geoPageSize))

		var payload nppesResponse
		if err := c.getJSON(ctx, c.cfg.NPPESBaseURL+"?"+q.Encode(), &payload); err != nil {
			if len(providers) > 0 {
				// Partial roster beats nothing; later pages failing is
				// logged, not fatal.
				logrus.WithError(err).Warn("Roster pagination aborted")
				return providers, nil
			}
			return nil, err
		}
		if len(payload.Results) == 0 {
			break
		}

		for _, r := range payload.Results {
			addr := pickLocationAddress(r)
			var tax struct{ code, desc string }
			for _, t := range r.Taxonomies {
				if t.Primary {
					tax.code, tax.desc = t.Code, t.Desc
					break
				}
			}
			if tax.code == "" && len(r.Taxonomies) > 0 {
				tax.code, tax.desc = r.Taxonomies[0].Code, r.Taxonomies[0].Desc
			}

			providers = append(providers, ProviderRecord{
				NPI:            r.Number,
				NameFull:       strings.TrimSpace(r.Basic.FirstName + " " + r.Basic.LastName),
				NameFirst:      r.Basic.FirstName,
				NameLast:       r.Basic.LastName,
				PracticeLine1:  addr.Address1,
				PracticeCity:   addr.City,
				PracticeState:  addr.State,
				PracticeZip:    zip5(addr.PostalCode),
				TaxonomyCode:   tax.code,
				TaxonomyClass:  tax.desc,
				LastUpdateDate: r.Basic.LastUpdated,
			})
		}

		if len(payload.Results) < geoPageSize {
			break
		}
	}

	return providers, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseAddressString splits the NLM combined address format
// ("123 Main St, Suite 100, Austin, TX 78701") into components.
func parseAddressString(addr string) SecondaryAddressFull {
	var out SecondaryAddressFull
	if addr == "" {
		return out
	}

	parts := strings.Split(addr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	last := parts[len(parts)-1]
	for _, f := range strings.Fields(last) {
		if len(f) == 5 && isDigits(f) {
			out.Zip = f
		} else if len(f) > 5 && f[5] == '-' && isDigits(f[:5]) {
			out.Zip = f[:5]
		} else if len(f) == 2 && f == strings.ToUpper(f) && !isDigits(f) {
			out.State = f
		}
	}

	switch {
	case len(parts) >= 4:
		out.Line1, out.Line2, out.City = parts[0], parts[1], parts[2]
	case len(parts) == 3:
		out.Line1, out.City = parts[0], parts[1]
	case len(parts) == 2:
		out.Line1 = parts[0]
	default:
		out.Line1 = addr
	}
	return out
}

// SecondaryAddressFull is a parsed address with both lines, used by the NLM
// combined-string parser.
type SecondaryAddressFull struct {
	Line1 string
	Line2 string
	City  string
	State string
	Zip   string
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
