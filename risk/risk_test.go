package risk

import "testing"

func TestAnalyzeFlags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want func(Flags) bool
	}{
		{
			name: "pfas upper case",
			text: "Sampling identified PFAS compounds in monitoring well MW-3.",
			want: func(f Flags) bool { return f.PFAS },
		},
		{
			name: "pfas via pfoa",
			text: "PFOA was detected at 12 ppt.",
			want: func(f Flags) bool { return f.PFAS },
		},
		{
			name: "petroleum via benzene",
			text: "Benzene exceeded the enforcement standard in soil borings.",
			want: func(f Flags) bool { return f.Petroleum },
		},
		{
			name: "petroleum via lust",
			text: "This LUST case was opened in 1994.",
			want: func(f Flags) bool { return f.Petroleum },
		},
		{
			name: "heavy metals",
			text: "Arsenic and chromium above residual contaminant levels.",
			want: func(f Flags) bool { return f.HeavyMetals },
		},
		{
			name: "chlorinated solvents",
			text: "TCE plume extends beneath the adjacent parcel.",
			want: func(f Flags) bool { return f.ChlorinatedSolvents && f.OffsiteImpact },
		},
		{
			name: "groundwater",
			text: "Groundwater flow direction is to the southeast.",
			want: func(f Flags) bool { return f.GroundwaterImpact },
		},
		{
			name: "soil",
			text: "Contaminated soil was excavated and landfilled.",
			want: func(f Flags) bool { return f.SoilContamination },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			if !tt.want(got.Flags) {
				t.Errorf("Analyze(%q): flags = %+v", tt.text, got.Flags)
			}
		})
	}
}

func TestAnalyzeCleanText(t *testing.T) {
	got := Analyze("The quarterly report describes routine site maintenance activities.")

	f := got.Flags
	if f.PFAS || f.Petroleum || f.HeavyMetals || f.ChlorinatedSolvents ||
		f.OffsiteImpact || f.GroundwaterImpact || f.SoilContamination {
		t.Errorf("expected no flags for clean text, got %+v", f)
	}
}

func TestAnalyzeInferredStatus(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"closure only", "A closure letter granting no further action was issued.", "CLOSED"},
		{"open wins over closure", "Case closed previously but active remediation resumed.", "OPEN"},
		{"open only", "Ongoing monitoring required at the site.", "OPEN"},
		{"neither", "Phase I site assessment narrative.", "UNKNOWN"},
		{"empty", "", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Analyze(tt.text).InferredStatus; got != tt.want {
				t.Errorf("InferredStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeConcentrations(t *testing.T) {
	text := "Benzene at 150 ppb and lead at 3.2 mg/kg were reported; pH of 7 is not a concentration."
	got := Analyze(text)
	if got.ConcentrationsFound != 2 {
		t.Errorf("ConcentrationsFound = %d, want 2", got.ConcentrationsFound)
	}
	if got.TextLength != len(text) {
		t.Errorf("TextLength = %d, want %d", got.TextLength, len(text))
	}
}
