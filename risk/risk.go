// Package risk derives contamination risk flags from extracted document
// text. Detection is purely lexical: case-insensitive substring search
// over fixed keyword lists per contaminant category.
package risk

import (
	"regexp"
	"strings"
)

// Flags marks which contaminant categories are mentioned in a body of text.
type Flags struct {
	StatusLabel         string `json:"status_label,omitempty"`
	PFAS                bool   `json:"pfas"`
	Petroleum           bool   `json:"petroleum"`
	HeavyMetals         bool   `json:"heavy_metals"`
	ChlorinatedSolvents bool   `json:"chlorinated_solvents"`
	OffsiteImpact       bool   `json:"offsite_impact"`
	GroundwaterImpact   bool   `json:"groundwater_impact"`
	SoilContamination   bool   `json:"soil_contamination"`
}

// Analysis is the result of scanning combined document text.
type Analysis struct {
	Flags               Flags  `json:"risk_flags"`
	InferredStatus      string `json:"inferred_status"`
	ConcentrationsFound int    `json:"concentrations_found"`
	TextLength          int    `json:"document_text_length"`
}

var (
	pfasKeywords = []string{"pfas", "pfoa", "pfos", "perfluor", "forever chemical"}

	petroleumKeywords = []string{
		"petroleum", "gasoline", "diesel", "btex", "benzene", "toluene",
		"ethylbenzene", "xylene", "fuel oil", "heating oil", "ust ",
		"underground storage tank", "lust", "leaking underground",
	}

	metalsKeywords = []string{
		"arsenic", "lead", "chromium", "mercury", "cadmium", "heavy metal",
		"metals contamination",
	}

	chlorinatedKeywords = []string{
		"tce", "pce", "chlorinated", "trichloroethylene", "tetrachloroethylene",
		"vinyl chloride", "dce", "solvent",
	}

	offsiteKeywords = []string{
		"off-site", "offsite", "migrated", "plume", "groundwater impact",
		"vapor intrusion", "neighboring property",
	}

	groundwaterKeywords = []string{"groundwater", "aquifer", "well contamination", "drinking water"}

	soilKeywords = []string{"soil contamination", "contaminated soil", "soil vapor"}

	closureKeywords = []string{"case closed", "no further action", "nfa", "closure", "closed"}
	openKeywords    = []string{"open case", "ongoing", "active remediation", "monitoring required"}
)

// concentrationRe matches values like "150 ppb" or "3.2 mg/l".
var concentrationRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ppb|ppm|mg/l|ug/l|mg/kg)`)

// Analyze scans combined extracted text for contamination indicators and
// infers a case status. Keyword matching is negation-blind: "no PFAS
// detected" still sets the PFAS flag.
func Analyze(text string) Analysis {
	lower := strings.ToLower(text)

	flags := Flags{
		PFAS:                containsAny(lower, pfasKeywords),
		Petroleum:           containsAny(lower, petroleumKeywords),
		HeavyMetals:         containsAny(lower, metalsKeywords),
		ChlorinatedSolvents: containsAny(lower, chlorinatedKeywords),
		OffsiteImpact:       containsAny(lower, offsiteKeywords),
		GroundwaterImpact:   containsAny(lower, groundwaterKeywords),
		SoilContamination:   containsAny(lower, soilKeywords),
	}

	hasClosure := containsAny(lower, closureKeywords)
	hasOpen := containsAny(lower, openKeywords)

	status := "UNKNOWN"
	switch {
	case hasClosure && !hasOpen:
		status = "CLOSED"
	case hasOpen:
		status = "OPEN"
	}

	return Analysis{
		Flags:               flags,
		InferredStatus:      status,
		ConcentrationsFound: len(concentrationRe.FindAllString(lower, -1)),
		TextLength:          len(text),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
