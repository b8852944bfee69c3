package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Winder2006/COBALT/risk"
)

// Snapshot is everything one parse of the activity page yields.
type Snapshot struct {
	Record    *SiteRecord
	PageFlags risk.Flags
	Documents []DocumentMeta
}

// headerRe matches the page header: "03-41-588459 J CAMP VAN DYKE".
var headerRe = regexp.MustCompile(`(\d{2}-\d{2}-\d+)\s+([A-Z][A-Z0-9\s'\-\.]+?)(?:\s*Activity Type|\s*$)`)

// docSeqRe pulls the registry's document sequence number out of a link.
var docSeqRe = regexp.MustCompile(`docSeqNo=(\d+)`)

// recordFieldPositions maps the rendered page's input.form-control
// elements, in document order, to record fields. The page renders values
// into readonly inputs with no usable names, so position is the contract.
var recordFieldPositions = []string{
	"activity_type",
	"status",
	"jurisdiction",
	"dnr_region",
	"county",
	"location_name",
	"address",
	"municipality",
	"plss_description",
	"latitude",
	"longitude",
	"acres",
	"facility_id",
	"pecfa_number",
	"epa_id",
	"start_date",
	"end_date",
}

// characteristicPositions continue directly after the record fields.
var characteristicPositions = []string{
	"above_ground_tank",
	"dry_cleaner",
	"epa_npl",
	"pecfa_eligible",
	"pfas",
	"row_impact",
	"sediments",
	"wi_dot",
	"underground_tank",
}

// parseSnapshot parses an activity-detail page. It handles both the
// script-rendered DOM (positional input values) and the static markup
// (label cell followed by value cell), taking whatever each offers.
func parseSnapshot(html, baseURL, dsn string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page markup: %w", err)
	}

	rec := &SiteRecord{DSN: dsn}
	pageText := doc.Text()

	if m := headerRe.FindStringSubmatch(pageText); m != nil {
		rec.ActivityNumber = m[1]
		rec.LocationName = strings.TrimSpace(m[2])
	}

	values := inputValues(doc)
	applyPositional(rec, values)
	applyLabelledCells(rec, doc)

	snap := &Snapshot{
		Record:    rec,
		PageFlags: pageRiskFlags(rec, values, pageText),
		Documents: parseDocumentLinks(doc, baseURL),
	}

	if rec.ActivityNumber == "" && rec.Status == "" && len(snap.Documents) == 0 {
		return nil, fmt.Errorf("%w: dsn %s", ErrNotFound, dsn)
	}
	return snap, nil
}

// inputValues collects the trimmed values of all rendered form inputs,
// in document order.
func inputValues(doc *goquery.Document) []string {
	var values []string
	doc.Find("input.form-control").Each(func(_ int, s *goquery.Selection) {
		values = append(values, strings.TrimSpace(s.AttrOr("value", "")))
	})
	return values
}

func applyPositional(rec *SiteRecord, values []string) {
	for i, field := range recordFieldPositions {
		if i >= len(values) {
			break
		}
		val := values[i]
		if val == "" || val == "UNKNOWN" {
			continue
		}
		switch field {
		case "activity_type":
			rec.ActivityType = val
		case "status":
			rec.Status = val
		case "jurisdiction":
			rec.Jurisdiction = val
		case "dnr_region":
			rec.DNRRegion = val
		case "county":
			rec.County = val
		case "location_name":
			// Header name wins; it includes suffixes the input drops.
			if rec.LocationName == "" {
				rec.LocationName = val
			}
		case "address":
			rec.Address = val
		case "municipality":
			rec.Municipality = val
		case "plss_description":
			rec.PLSSDescription = val
		case "latitude":
			rec.Latitude = val
		case "longitude":
			rec.Longitude = val
		case "acres":
			rec.Acres = val
		case "facility_id":
			rec.FacilityID = val
		case "pecfa_number":
			rec.PECFANumber = val
		case "epa_id":
			rec.EPAID = val
		case "start_date":
			rec.StartDate = val
		case "end_date":
			rec.EndDate = val
		}
	}
}

// applyLabelledCells handles the legacy static table layout where each
// label cell is followed by a sibling value cell.
func applyLabelledCells(rec *SiteRecord, doc *goquery.Document) {
	labels := map[string]*string{
		"Activity Number": &rec.ActivityNumber,
		"Status":          &rec.Status,
		"Activity Type":   &rec.ActivityType,
		"Location Name":   &rec.LocationName,
		"Address":         &rec.Address,
		"Municipality":    &rec.Municipality,
		"County":          &rec.County,
		"DNR Region":      &rec.DNRRegion,
		"Start Date":      &rec.StartDate,
		"End Date":        &rec.EndDate,
	}

	doc.Find("td").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		dst, ok := labels[label]
		if !ok || *dst != "" {
			return
		}
		if val := strings.TrimSpace(s.Next().Text()); val != "" {
			*dst = val
		}
	})
}

// pageRiskFlags derives risk hints from the characteristics block, the
// activity type, and a keyword scan of the page text. These are hints
// from site metadata; document-text analysis happens after extraction.
func pageRiskFlags(rec *SiteRecord, values []string, pageText string) risk.Flags {
	flags := risk.Flags{StatusLabel: "UNKNOWN"}
	if rec.Status != "" {
		flags.StatusLabel = strings.ToUpper(rec.Status)
	}

	charOffset := len(recordFieldPositions)
	for i, name := range characteristicPositions {
		idx := charOffset + i
		if idx >= len(values) || !strings.EqualFold(values[idx], "yes") {
			continue
		}
		switch name {
		case "pfas":
			flags.PFAS = true
		case "underground_tank", "above_ground_tank":
			flags.Petroleum = true
		case "row_impact":
			flags.OffsiteImpact = true
		}
	}

	if strings.EqualFold(rec.ActivityType, "LUST") {
		flags.Petroleum = true
	}

	lower := strings.ToLower(pageText)
	if strings.Contains(lower, "petroleum") {
		flags.Petroleum = true
	}
	for _, metal := range []string{"arsenic", "lead", "chromium", "mercury", "cadmium"} {
		if strings.Contains(lower, metal) {
			flags.HeavyMetals = true
			break
		}
	}
	for _, solvent := range []string{"tce", "pce", "trichloroethylene", "tetrachloroethylene", "chlorinated"} {
		if strings.Contains(lower, solvent) {
			flags.ChlorinatedSolvents = true
			break
		}
	}
	if strings.Contains(lower, "offsite") || strings.Contains(lower, "off-site") {
		flags.OffsiteImpact = true
	}

	return flags
}

// parseDocumentLinks collects document download anchors, deduplicated by
// href, in page order. IDs are assigned sequentially within this listing.
func parseDocumentLinks(doc *goquery.Document, baseURL string) []DocumentMeta {
	var documents []DocumentMeta
	seen := make(map[string]bool)

	doc.Find("a[href*='download-document'], a[href*='docSeqNo']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || seen[href] {
			return
		}
		seen[href] = true

		full := href
		if !strings.HasPrefix(full, "http") {
			full = baseURL + "/" + strings.TrimLeft(full, "/")
		}

		seqNo := fmt.Sprintf("%d", len(documents))
		if m := docSeqRe.FindStringSubmatch(full); m != nil {
			seqNo = m[1]
		}

		documents = append(documents, DocumentMeta{
			ID:          len(documents),
			Name:        "Site File Documentation (ID: " + seqNo + ")",
			Category:    "Site File",
			Comment:     "DNR site documentation",
			DownloadURL: full,
		})
	})

	return documents
}
