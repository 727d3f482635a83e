package util

import (
	"strings"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestGetTagByName_Valid(t *testing.T) {
	tests := []struct {
		name          string
		expectedTag   tag.Tag
		expectedScope TagScope
	}{
		{"PatientName", tag.PatientName, ScopePatient},
		{"PatientID", tag.PatientID, ScopePatient},
		{"RTPlanLabel", tag.RTPlanLabel, ScopePlan},
		{"RTPlanDate", tag.RTPlanDate, ScopePlan},
		{"PlanIntent", tag.PlanIntent, ScopePlan},
		{"ApprovalStatus", tag.ApprovalStatus, ScopePlan},
		{"ReviewerName", tag.ReviewerName, ScopePlan},
		{"OperatorsName", tag.OperatorsName, ScopePlan},
		{"Manufacturer", tag.Manufacturer, ScopePlan},
		{"TreatmentMachineName", tag.TreatmentMachineName, ScopeBeam},
		{"BeamDescription", tag.BeamDescription, ScopeBeam},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := GetTagByName(tc.name)
			if err != nil {
				t.Fatalf("GetTagByName(%q) returned error: %v", tc.name, err)
			}
			if info.Tag != tc.expectedTag {
				t.Errorf("GetTagByName(%q).Tag = %v, want %v", tc.name, info.Tag, tc.expectedTag)
			}
			if info.Scope != tc.expectedScope {
				t.Errorf("GetTagByName(%q).Scope = %v, want %v", tc.name, info.Scope, tc.expectedScope)
			}
			if info.Name != tc.name {
				t.Errorf("GetTagByName(%q).Name = %q, want %q", tc.name, info.Name, tc.name)
			}
		})
	}
}

func TestGetTagByName_Invalid(t *testing.T) {
	for _, name := range []string{"", "   ", "NotATag", "ScanSpotMetersetWeights", "BeamMeterset"} {
		t.Run(name, func(t *testing.T) {
			if _, err := GetTagByName(name); err == nil {
				t.Errorf("GetTagByName(%q) should return error", name)
			}
		})
	}
}

func TestGetTagByName_Suggestion(t *testing.T) {
	tests := []struct {
		typo       string
		suggestion string
	}{
		{"PatinetName", "PatientName"},
		{"RTPlanLabl", "RTPlanLabel"},
		{"ReviewrName", "ReviewerName"},
		{"Manufacurer", "Manufacturer"},
		{"TreatmentMachine", "TreatmentMachineName"},
	}

	for _, tc := range tests {
		t.Run(tc.typo, func(t *testing.T) {
			_, err := GetTagByName(tc.typo)
			if err == nil {
				t.Fatalf("GetTagByName(%q) should return error", tc.typo)
			}
			if !strings.Contains(err.Error(), tc.suggestion) {
				t.Errorf("error for %q should suggest %q, got: %v", tc.typo, tc.suggestion, err)
			}
		})
	}
}

func TestGetTagByName_CaseInsensitive(t *testing.T) {
	for _, in := range []string{"rtplanlabel", "RTPLANLABEL", " RtPlanLabel "} {
		info, err := GetTagByName(in)
		if err != nil {
			t.Fatalf("GetTagByName(%q) returned error: %v", in, err)
		}
		if info.Name != "RTPlanLabel" {
			t.Errorf("GetTagByName(%q).Name = %q, want RTPlanLabel", in, info.Name)
		}
	}
}

func TestRegisteredTags_Sorted(t *testing.T) {
	tags := RegisteredTags()
	if len(tags) != len(tagRegistry) {
		t.Fatalf("RegisteredTags() returned %d entries, want %d", len(tags), len(tagRegistry))
	}
	for i := 1; i < len(tags); i++ {
		if tags[i-1].Name >= tags[i].Name {
			t.Errorf("tags not sorted at %d: %q >= %q", i, tags[i-1].Name, tags[i].Name)
		}
	}
}

func TestTagScope_String(t *testing.T) {
	tests := map[TagScope]string{
		ScopePatient: "Patient",
		ScopePlan:    "Plan",
		ScopeBeam:    "Beam",
		TagScope(99): "Unknown",
	}
	for scope, want := range tests {
		if got := scope.String(); got != want {
			t.Errorf("TagScope(%d).String() = %q, want %q", scope, got, want)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"PatientName", "PatinetName", 2},
	}

	for _, tc := range tests {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			if got := levenshteinDistance(tc.a, tc.b); got != tc.expected {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
