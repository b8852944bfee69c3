package cobalt

import (
	"fmt"
	"strings"

	"github.com/Winder2006/COBALT/extract"
	"github.com/Winder2006/COBALT/registry"
	"github.com/Winder2006/COBALT/risk"
)

// Character caps on document text embedded in prompts. They keep the
// request under typical model context limits with room for the answer.
const (
	maxSummaryText      = 35000
	maxChatText         = 40000
	maxFullAnalysisText = 30000
)

const summarizeSystemPrompt = "You are an environmental due diligence analyst specializing in " +
	"contaminated property assessment. Provide clear, professional analysis " +
	"suitable for commercial real estate transactions."

// summaryPrompt builds the single-shot summarization prompt: site context,
// truncated document text, and the structure the answer should follow.
func summaryPrompt(rec *registry.SiteRecord, combinedText string) string {
	var b strings.Builder
	b.WriteString("Analyze the following environmental site documents and provide a comprehensive due diligence summary.\n\n")
	b.WriteString(siteContext(rec))
	b.WriteString("\nDOCUMENT TEXT:\n")
	b.WriteString(truncateText(combinedText, maxSummaryText))
	b.WriteString(`

Provide a structured summary including:

1. **SITE OVERVIEW**: Brief description of the property and contamination history

2. **CONTAMINATION SUMMARY**:
   - Types of contamination found (petroleum, PFAS, heavy metals, solvents, etc.)
   - Specific contaminants and concentrations mentioned
   - Media affected (soil, groundwater, soil vapor)

3. **REMEDIATION STATUS**:
   - What cleanup actions have been taken
   - Current status of remediation
   - Any ongoing monitoring requirements

4. **REGULATORY STATUS**:
   - Case status (Open/Closed)
   - Any closure letters or No Further Action determinations
   - Continuing obligations or deed restrictions

5. **KEY RISK FACTORS**:
   - Significant environmental concerns
   - Off-site migration or impact
   - Vapor intrusion potential
   - Groundwater impact

6. **RECOMMENDATIONS**:
   - Additional investigation needs
   - Due diligence considerations for property acquisition

Be specific and cite information from the documents where possible.`)
	return b.String()
}

const fullAnalysisSystemPrompt = "You are an environmental due diligence analyst. Return only valid JSON."

// fullAnalysisPrompt builds the one-shot pipeline prompt: site context,
// the combined extracted text, and the JSON shape expected back. The site
// record is authoritative from the scrape, so the model is only asked for
// what the documents add.
func fullAnalysisPrompt(rec *registry.SiteRecord, combinedText string, docCount int) string {
	var b strings.Builder
	b.WriteString("Analyze this remediation site using its registry record and the extracted document text.\n\n")
	b.WriteString(siteContext(rec))
	if combinedText != "" {
		fmt.Fprintf(&b, "\nEXTRACTED DOCUMENT TEXT (from %d documents):\n%s\n",
			docCount, truncateText(combinedText, maxFullAnalysisText))
	} else {
		b.WriteString("\nNo document text could be extracted; assess from the record alone and say so.\n")
	}
	b.WriteString(`
From the material above, extract:

1. Contamination details: contaminants found, concentrations, media affected
2. Remediation status: cleanup actions taken, ongoing monitoring requirements
3. Closure status: closure letters, No Further Action determinations
4. Restrictions: continuing obligations, deed restrictions, EC/ICs

Return as JSON:
{
  "document_findings": {
    "contamination_details": "...",
    "remediation_status": "...",
    "closure_status": "...",
    "key_concentrations": ["..."],
    "restrictions": "..."
  },
  "summary": "Comprehensive summary based on all available material..."
}`)
	return b.String()
}

// stripCodeFence unwraps a fenced code block if the model added one
// around its JSON answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// siteContext renders the site record fields most useful as prompt context.
func siteContext(rec *registry.SiteRecord) string {
	get := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	if rec == nil {
		rec = &registry.SiteRecord{}
	}
	return fmt.Sprintf(
		"Site: %s\nActivity Number: %s\nStatus: %s\nActivity Type: %s\nAddress: %s, %s, %s County\n",
		get(rec.LocationName, "Unknown"),
		get(rec.ActivityNumber, "Unknown"),
		get(rec.Status, "Unknown"),
		get(rec.ActivityType, "Unknown"),
		get(rec.Address, "Unknown"),
		rec.Municipality,
		rec.County,
	)
}

// chatSystemPrompt embeds the full site context into a system message:
// record JSON, risk flags, the document roster, and extracted text.
func chatSystemPrompt(site SiteData, docs []extract.ExtractedDocument, extractedText string, withText int) string {
	var b strings.Builder
	b.WriteString("You are an environmental due diligence analyst helping a commercial real estate\n")
	b.WriteString("developer understand environmental risk for a property from remediation registry data.\n\n")

	b.WriteString("SITE INFORMATION:\n")
	b.WriteString(mustJSON(site.Record))
	b.WriteString("\n\nRISK INDICATORS:\n")
	b.WriteString(mustJSON(site.RiskFlags))
	b.WriteString("\n\nSELECTED DOCUMENTS FOR REVIEW:\n")
	b.WriteString(documentRoster(docs))

	if extractedText != "" {
		fmt.Fprintf(&b, "\n\nEXTRACTED DOCUMENT CONTENT (%d documents successfully extracted):\n%s\n", withText, extractedText)
	}

	b.WriteString(`
Use this information to answer questions. Be specific about what the documents indicate.
Quote relevant sections from the documents when answering questions.
If you don't have enough information to answer, suggest what additional documents or
investigations might help. Always recommend professional Phase I/II ESA review for legal decisions.`)
	return b.String()
}

// documentRoster lists the selected documents' metadata for AI context.
func documentRoster(docs []extract.ExtractedDocument) string {
	if len(docs) == 0 {
		return "No documents selected."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Selected Documents (%d total):\n\n", len(docs))
	for i, doc := range docs {
		name := doc.Name
		if name == "" {
			name = "Unnamed Document"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		if doc.Category != "" {
			fmt.Fprintf(&b, "   Category: %s\n", doc.Category)
		}
		if doc.Date != "" {
			fmt.Fprintf(&b, "   Date: %s\n", doc.Date)
		}
		if doc.ActionCode != "" {
			fmt.Fprintf(&b, "   Action Code: %s\n", doc.ActionCode)
		}
		if doc.Comment != "" {
			fmt.Fprintf(&b, "   Comment: %s\n", doc.Comment)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// siteSummary is the rule-based summary returned by Analyze before any
// documents have been extracted.
func siteSummary(rec *registry.SiteRecord, flags risk.Flags, docCount int) string {
	if rec == nil {
		rec = &registry.SiteRecord{}
	}

	location := rec.LocationName
	if location == "" {
		location = "Unknown Location"
	}
	locationParts := []string{location}
	if rec.Address != "" {
		locationParts = append(locationParts, "at "+rec.Address)
	}
	if rec.Municipality != "" {
		locationParts = append(locationParts, rec.Municipality)
	}
	if rec.County != "" {
		locationParts = append(locationParts, rec.County+" County")
	}

	activity := rec.ActivityNumber
	if activity == "" {
		activity = rec.DSN
	}
	if activity == "" {
		activity = "Unknown"
	}
	status := rec.Status
	if status == "" {
		status = flags.StatusLabel
	}
	if status == "" {
		status = "Unknown"
	}
	activityType := rec.ActivityType
	if activityType == "" {
		activityType = "Unknown"
	}
	startDate := rec.StartDate
	if startDate == "" {
		startDate = "Unknown"
	}
	endDate := rec.EndDate
	if endDate == "" {
		endDate = "N/A"
	}

	var risks []string
	if flags.Petroleum {
		risks = append(risks, "Petroleum contamination indicated (LUST site)")
	}
	if flags.PFAS {
		risks = append(risks, "PFAS contamination present")
	}
	if flags.HeavyMetals {
		risks = append(risks, "Heavy metals detected")
	}
	if flags.ChlorinatedSolvents {
		risks = append(risks, "Chlorinated solvents present")
	}
	if flags.OffsiteImpact {
		risks = append(risks, "Off-site or ROW impact noted")
	}

	riskText := "- No major risk indicators identified from site data"
	if len(risks) > 0 {
		lines := make([]string, len(risks))
		for i, r := range risks {
			lines[i] = "- " + r
		}
		riskText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`Site: %s
Activity: %s | Type: %s | Status: %s

Start Date: %s
End Date: %s

Risk Indicators:
%s

Documents Available: %d

Recommendations:
- Select documents and extract text to analyze content
- For legal decisions, always conduct professional Phase I/II ESA review`,
		strings.Join(locationParts, ", "), activity, activityType, status,
		startDate, endDate, riskText, docCount)
}

// fallbackSummary is the rule-based stand-in used when the AI endpoint
// is unreachable or no API key is configured.
func fallbackSummary(rec *registry.SiteRecord, flags risk.Flags, reason string) string {
	if rec == nil {
		rec = &registry.SiteRecord{}
	}
	activity := rec.ActivityNumber
	if activity == "" {
		activity = "Unknown"
	}
	status := rec.Status
	if status == "" {
		status = flags.StatusLabel
	}
	if status == "" {
		status = "UNKNOWN"
	}

	var b strings.Builder
	b.WriteString("**Environmental Site Assessment Summary (Fallback)**\n\n")
	b.WriteString("**Site Overview**\n")
	fmt.Fprintf(&b, "- Activity: %s\n", activity)
	fmt.Fprintf(&b, "- Status: %s\n\n", status)

	b.WriteString("**Key Contaminants / Concerns**\n")
	concerns := 0
	if flags.PFAS {
		b.WriteString("- PFAS contamination concern.\n")
		concerns++
	}
	if flags.Petroleum {
		b.WriteString("- Petroleum-related contamination indicated.\n")
		concerns++
	}
	if flags.HeavyMetals {
		b.WriteString("- Heavy metals detected or suspected.\n")
		concerns++
	}
	if flags.ChlorinatedSolvents {
		b.WriteString("- Chlorinated solvents present.\n")
		concerns++
	}
	if flags.OffsiteImpact {
		b.WriteString("- Possible off-site or right-of-way impacts flagged.\n")
		concerns++
	}
	if concerns == 0 {
		b.WriteString("- No contaminant indicators flagged from site data.\n")
	}

	b.WriteString("\n**Regulatory / Status Notes**\n")
	b.WriteString("- Further review of the registry's actions and documents recommended.\n\n")

	b.WriteString("**Recommended Next Steps**\n")
	b.WriteString("- Review supporting reports and agency documents.\n")
	b.WriteString("- Confirm any continuing obligations, use restrictions, or EC/ICs.\n")
	b.WriteString("- Evaluate whether further investigation (e.g., Phase II) is needed.\n\n")

	fmt.Fprintf(&b, "*Note: AI summarization unavailable (%s)*", reason)
	return b.String()
}
