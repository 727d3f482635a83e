package util

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"
)

func TestParsePlanIntent_Valid(t *testing.T) {
	tests := []struct {
		input    string
		expected PlanIntent
	}{
		{"CURATIVE", IntentCurative},
		{"curative", IntentCurative},
		{"Palliative", IntentPalliative},
		{"MACHINE_QA", IntentMachineQA},
		{"machine-qa", IntentMachineQA},
		{" research ", IntentResearch},
	}

	for _, tc := range tests {
		got, err := ParsePlanIntent(tc.input)
		if err != nil {
			t.Errorf("ParsePlanIntent(%q) returned error: %v", tc.input, err)
		}
		if got != tc.expected {
			t.Errorf("ParsePlanIntent(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestParsePlanIntent_Invalid(t *testing.T) {
	if _, err := ParsePlanIntent("CURE"); err == nil {
		t.Error("ParsePlanIntent(CURE) should return error")
	}
}

func TestPlanIntent_String(t *testing.T) {
	if IntentCurative.String() != "CURATIVE" {
		t.Errorf("IntentCurative.String() = %s", IntentCurative)
	}
	if PlanIntent(42).String() != "UNKNOWN" {
		t.Errorf("PlanIntent(42).String() = %s", PlanIntent(42))
	}
}

func TestGeneratePlanIntent_Distribution(t *testing.T) {
	counts := map[PlanIntent]int{}
	rng := rand.New(rand.NewPCG(42, 42))
	for i := 0; i < 1000; i++ {
		counts[GeneratePlanIntent(rng)]++
	}
	if counts[IntentCurative] < 500 {
		t.Errorf("CURATIVE should be most common, got %d/1000", counts[IntentCurative])
	}
	if counts[IntentService] != 0 {
		t.Errorf("SERVICE should never be generated, got %d", counts[IntentService])
	}
}

func TestParseFloatList(t *testing.T) {
	got, err := ParseFloatList("0, 90,270.5")
	if err != nil {
		t.Fatalf("ParseFloatList returned error: %v", err)
	}
	want := []float64{0, 90, 270.5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"", "1,,2", "a"} {
		if _, err := ParseFloatList(bad); err == nil {
			t.Errorf("ParseFloatList(%q) should return error", bad)
		}
	}
}

func TestParseTablePosition(t *testing.T) {
	pos, err := ParseTablePosition("1.5,-20,0")
	if err != nil {
		t.Fatalf("ParseTablePosition returned error: %v", err)
	}
	if pos.Vertical != 15 || pos.Longitudinal != -200 || pos.Lateral != 0 {
		t.Errorf("ParseTablePosition = %+v, want {15 -200 0} mm", pos)
	}
	if _, err := ParseTablePosition("1,2"); err == nil {
		t.Error("two values should be rejected")
	}
}

func TestParseTagAssignment(t *testing.T) {
	info, value, err := ParseTagAssignment("RTPlanLabel=BOOST=2")
	if err != nil {
		t.Fatalf("ParseTagAssignment returned error: %v", err)
	}
	if info.Name != "RTPlanLabel" || value != "BOOST=2" {
		t.Errorf("got %s=%q", info.Name, value)
	}

	if _, _, err := ParseTagAssignment("RTPlanLabel"); err == nil {
		t.Error("missing '=' should be rejected")
	}
	if _, _, err := ParseTagAssignment("RTPlanLabl=X"); err == nil || !strings.Contains(err.Error(), "RTPlanLabel") {
		t.Errorf("typo should suggest RTPlanLabel, got %v", err)
	}
}

func TestNewUID(t *testing.T) {
	re := regexp.MustCompile(`^2\.25\.[1-9][0-9]*$`)
	a, b := NewUID(), NewUID()
	if !re.MatchString(a) {
		t.Errorf("NewUID() = %q, not a 2.25 UID", a)
	}
	if len(a) > 64 {
		t.Errorf("UID %q longer than 64 characters", a)
	}
	if a == b {
		t.Error("two UIDs should differ")
	}
}

func TestGeneratePatientName(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		name := GeneratePatientName("M", rng)
		if strings.Count(name, "^") != 1 {
			t.Fatalf("GeneratePatientName = %q, want LAST^FIRST", name)
		}
	}
	staff := GenerateStaffName(rng)
	if staff != strings.ToUpper(staff) {
		t.Errorf("GenerateStaffName = %q, want upper case", staff)
	}
}

func TestFormat(t *testing.T) {
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Errorf("FormatCount = %q", got)
	}
	if got := FormatParticles(1.5e9); got != "1.5 G" {
		t.Errorf("FormatParticles = %q", got)
	}
	if got := FormatBytes(-1); got != "0 B" {
		t.Errorf("FormatBytes(-1) = %q", got)
	}
}
