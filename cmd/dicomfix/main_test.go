package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mrsinham/dicomfix/internal/dicom/synth"
	"github.com/mrsinham/dicomfix/internal/export"
)

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	factor := fs.Float64("rescale-factor", 0, "")
	approve := fs.Bool("approve", false, "")

	positional, err := parseInterspersed(fs, []string{"--approve", "plan.dcm", "--rescale-factor", "2", "--", "-odd.dcm"})
	if err != nil {
		t.Fatalf("parseInterspersed: %v", err)
	}
	if !reflect.DeepEqual(positional, []string{"plan.dcm", "-odd.dcm"}) {
		t.Errorf("positional = %v", positional)
	}
	if *factor != 2 || !*approve {
		t.Errorf("flags after the positional were not parsed: factor %v approve %v", *factor, *approve)
	}
}

func TestScanFlag(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"plan.dcm", "--config", "job.yaml"}, "job.yaml"},
		{[]string{"-config=job.yaml"}, "job.yaml"},
		{[]string{"--config"}, ""},
		{[]string{"config", "job.yaml"}, ""},
		{[]string{"--save-config", "out.yaml"}, ""},
	}
	for _, tt := range tests {
		if got := scanFlag(tt.args, "config"); got != tt.want {
			t.Errorf("scanFlag(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestRunEdit_ConfigThenFlags(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan.dcm")
	if _, err := synth.Generate(synth.Options{
		OutputPath: input, Seed: 3, Fields: 1, Layers: 2, SpotsPerLayer: 4,
		BeamDose: 1, BeamMeterset: 100, Machine: "TR1", Quiet: true,
	}); err != nil {
		t.Fatal(err)
	}
	job := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(job, []byte("input: "+input+"\nrescale_factor: 2\nmin_mu: 0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.dcm")
	saved := filepath.Join(dir, "saved.yaml")
	if err := runEdit([]string{"--config", job, "--quiet", "--output", out, "--save-config", saved}); err != nil {
		t.Fatalf("runEdit: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"rescale_factor: 2", "min_mu: 0.1", "output: " + out} {
		if !strings.Contains(string(data), want) {
			t.Errorf("saved job missing %q:\n%s", want, data)
		}
	}
}

func TestRunEdit_Errors(t *testing.T) {
	if err := runEdit(nil); err == nil || !strings.Contains(err.Error(), "input plan is required") {
		t.Errorf("no input: error = %v", err)
	}
	if err := runEdit([]string{"a.dcm", "b.dcm"}); err == nil {
		t.Error("two inputs: expected an error")
	}
	if err := runEdit([]string{"a.dcm", "--tag", "NoSuchTag=1"}); err == nil {
		t.Error("unknown tag: expected an error")
	}
	if err := runEdit([]string{"a.dcm", "--gantry-angles", "0,east"}); err == nil {
		t.Error("bad angle list: expected an error")
	}
}

func TestExportSpots(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan.dcm")
	if _, err := synth.Generate(synth.Options{
		OutputPath: input, Seed: 3, Fields: 2, Layers: 3, SpotsPerLayer: 9,
		BeamDose: 1, BeamMeterset: 100, Machine: "TR1", Quiet: true,
	}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	o := spotsOptions{
		input:       input,
		output:      filepath.Join(dir, "sobp.dat"),
		scale:       1,
		columns:     export.Columns6,
		metricsFile: filepath.Join(dir, "spots.prom"),
	}
	if err := exportSpots(o, &out); err != nil {
		t.Fatalf("exportSpots: %v", err)
	}
	for _, name := range []string{"sobp_01.dat", "sobp_02.dat", "spots.prom"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if got := strings.Count(out.String(), "✓ Spot list written to"); got != 2 {
		t.Errorf("%d progress lines, want 2:\n%s", got, out.String())
	}

	out.Reset()
	o.diag = true
	if err := exportSpots(o, &out); err != nil {
		t.Fatalf("exportSpots diag: %v", err)
	}
	if !strings.Contains(out.String(), "Field 2 ") || !strings.Contains(out.String(), "layer   3") {
		t.Errorf("diagnostics incomplete:\n%s", out.String())
	}

	o.diag, o.topas = false, true
	if err := exportSpots(o, io.Discard); err == nil {
		t.Error("TOPAS without beam model: expected an error")
	}
}

func TestOutputStepsExpandTmpdir(t *testing.T) {
	tc := &testContext{tmpDir: "/tmp/run-1", output: "✓ New plan written to: /tmp/run-1/out.dcm\n"}
	if err := tc.theOutputShouldContain("✓ New plan written to: {tmpdir}/out.dcm"); err != nil {
		t.Error(err)
	}
	if err := tc.theOutputShouldNotContain("{tmpdir}/output.dcm"); err != nil {
		t.Error(err)
	}
	if err := tc.theOutputShouldNotContain("{tmpdir}/out.dcm"); err == nil {
		t.Error("expected the expanded path to be found in the output")
	}
}
