// Package registry fetches site records and document listings from a
// BRRTS-style remediation registry. Pages are retrieved through a Source
// (headless browser when available, plain HTTP otherwise) and parsed with
// goquery; both paths share one parser, the browser path just sees the
// script-rendered DOM.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

var (
	// ErrNotFound is returned when a site ID has no matching registry record.
	ErrNotFound = errors.New("registry: site not found")

	// ErrUnavailable is returned on network or timeout failures. Callers
	// may retry; the client never does.
	ErrUnavailable = errors.New("registry: unavailable")

	// ErrInvalidID is returned when a site ID contains no digits.
	ErrInvalidID = errors.New("registry: invalid site id")
)

// SiteRecord is an immutable snapshot of one registry activity record.
// Fields the page does not carry are left empty.
type SiteRecord struct {
	DSN             string `json:"dsn"`
	ActivityNumber  string `json:"activity_number,omitempty"`
	Status          string `json:"status,omitempty"`
	ActivityType    string `json:"activity_type,omitempty"`
	Jurisdiction    string `json:"jurisdiction,omitempty"`
	DNRRegion       string `json:"dnr_region,omitempty"`
	County          string `json:"county,omitempty"`
	LocationName    string `json:"location_name,omitempty"`
	Address         string `json:"address,omitempty"`
	Municipality    string `json:"municipality,omitempty"`
	PLSSDescription string `json:"plss_description,omitempty"`
	Latitude        string `json:"latitude,omitempty"`
	Longitude       string `json:"longitude,omitempty"`
	Acres           string `json:"acres,omitempty"`
	FacilityID      string `json:"facility_id,omitempty"`
	PECFANumber     string `json:"pecfa_number,omitempty"`
	EPAID           string `json:"epa_id,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
}

// DocumentMeta describes one downloadable document from a listing.
// IDs are assigned sequentially per listing response and carry no
// global meaning.
type DocumentMeta struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	ActionCode  string `json:"action_code"`
	Comment     string `json:"comment"`
	DownloadURL string `json:"download_url"`
}

// Config configures a registry client.
type Config struct {
	// BaseURL is the registry origin, e.g. "https://apps.dnr.wi.gov".
	BaseURL string
	// Source retrieves page HTML. Defaults to a StaticSource when nil.
	Source Source
}

// Client scrapes site and document data from the registry.
type Client struct {
	baseURL string
	source  Source
}

// NewClient creates a registry client. cfg.BaseURL must be set.
func NewClient(cfg Config) *Client {
	src := cfg.Source
	if src == nil {
		src = NewStaticSource(0)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		source:  src,
	}
}

const detailPath = "/rrbotw/botw-activity-detail"

// detailURL builds the activity-detail page URL for a DSN.
func (c *Client) detailURL(dsn string) string {
	return c.baseURL + detailPath + "?dsn=" + url.QueryEscape(dsn)
}

// NormalizeDSN extracts the 6-digit DSN from a user-supplied site ID,
// which may be a full BRRTS activity number like "03-41-588459".
func NormalizeDSN(siteID string) (string, error) {
	var digits strings.Builder
	for _, r := range siteID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, siteID)
	}
	if len(d) > 6 {
		d = d[len(d)-6:]
	}
	return d, nil
}

// Fetch retrieves and parses the full activity page for a site: record,
// page-level risk hints, and the document listing, all from one fetch.
func (c *Client) Fetch(ctx context.Context, siteID string) (*Snapshot, error) {
	dsn, err := NormalizeDSN(siteID)
	if err != nil {
		return nil, err
	}

	pageURL := c.detailURL(dsn)
	html, err := c.source.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s via %s: %v", ErrUnavailable, pageURL, c.source.Name(), err)
	}

	snap, err := parseSnapshot(html, c.baseURL, dsn)
	if err != nil {
		return nil, err
	}

	slog.Debug("registry: fetched site",
		"dsn", dsn,
		"source", c.source.Name(),
		"documents", len(snap.Documents),
	)
	return snap, nil
}

// FetchRecord retrieves the site record for a site ID.
func (c *Client) FetchRecord(ctx context.Context, siteID string) (*SiteRecord, error) {
	snap, err := c.Fetch(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return snap.Record, nil
}

// ListDocuments enumerates the site's documents. An empty listing is a
// valid result, not an error: many closed sites have no scanned files.
func (c *Client) ListDocuments(ctx context.Context, siteID string) ([]DocumentMeta, error) {
	snap, err := c.Fetch(ctx, siteID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return snap.Documents, nil
}

// ResolveDocument builds DocumentMeta for a manually specified document
// sequence number, without touching the registry.
func (c *Client) ResolveDocument(docSeqNo, siteID string) (*DocumentMeta, error) {
	seq := strings.TrimSpace(docSeqNo)
	if seq == "" {
		return nil, fmt.Errorf("%w: empty docSeqNo", ErrInvalidID)
	}
	for _, r := range seq {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: docSeqNo %q is not numeric", ErrInvalidID, docSeqNo)
		}
	}

	return &DocumentMeta{
		ID:          0,
		Name:        "Site File Documentation (ID: " + seq + ")",
		Category:    "Site File",
		Comment:     "Manually added document",
		DownloadURL: c.baseURL + "/rrbotw/download-document?docSeqNo=" + seq + "&sender=activity",
	}, nil
}
