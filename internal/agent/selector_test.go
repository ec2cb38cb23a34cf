package agent

import (
	"slices"
	"testing"
)

var toolNames = []string{"coverage_lookup", "benefit_verify", "claims_status"}

func TestParseToolSelection(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "coverage_lookup", []string{"coverage_lookup"}},
		{"one per line", "coverage_lookup\nbenefit_verify", []string{"coverage_lookup", "benefit_verify"}},
		{"duplicates dropped", "coverage_lookup\nclaims_status\ncoverage_lookup", []string{"coverage_lookup", "claims_status"}},
		{"case insensitive", "  CLAIMS_STATUS  ", []string{"claims_status"}},
		{"prose", "- I would use benefit_verify for this", []string{"benefit_verify"}},
		{"same line by position", "claims_status, coverage_lookup", []string{"claims_status", "coverage_lookup"}},
		{"none", "(no tools)", nil},
		{"empty", "", nil},
		{"unknown names ignored", "weather_lookup\n\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolSelection(tt.in, toolNames)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseToolSelection(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseToolSelectionOnlyReturnsKnownNames(t *testing.T) {
	got := ParseToolSelection("coverage_lookup_v2\nfoo\nbenefit_verify", toolNames)
	for _, name := range got {
		if !slices.Contains(toolNames, name) {
			t.Fatalf("unknown name %q returned", name)
		}
	}
}
