package synth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuild_Shape(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 7
	opts.Quiet = true
	opts.Fields = 3
	opts.Layers = 4
	opts.SpotsPerLayer = 10

	_, p, err := Build(opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(p.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(p.Fields))
	}
	for _, f := range p.Fields {
		if len(f.Layers) != 8 {
			t.Errorf("field %d: %d stored layers, want 8", f.Number, len(f.Layers))
		}
		if got := f.PhysicalLayerCount(); got != 4 {
			t.Errorf("field %d: %d physical layers, want 4", f.Number, got)
		}
		if f.FinalCumulativeMetersetWeight <= 0 {
			t.Errorf("field %d: final weight %v", f.Number, f.FinalCumulativeMetersetWeight)
		}
		if f.BeamMeterset != opts.BeamMeterset {
			t.Errorf("field %d: meterset %v, want %v", f.Number, f.BeamMeterset, opts.BeamMeterset)
		}
	}
	if got := p.TotalSpots(); got != 3*4*10 {
		t.Errorf("TotalSpots() = %d, want %d", got, 3*4*10)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 1234
	opts.Quiet = true

	_, a, err := Build(opts)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := Build(opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.Metadata.PatientName != b.Metadata.PatientName {
		t.Errorf("patient name differs: %q vs %q", a.Metadata.PatientName, b.Metadata.PatientName)
	}
	wa := a.Fields[1].Layers[2].Spots[3].Weight
	wb := b.Fields[1].Layers[2].Spots[3].Weight
	if wa != wb {
		t.Errorf("spot weight differs: %v vs %v", wa, wb)
	}
}

func TestBuild_LowWeightSpots(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 3
	opts.Quiet = true
	opts.LowWeightShare = 1

	_, p, err := Build(opts)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range p.Fields[0].Layers[0].Spots {
		if s.Weight >= 0.5 {
			t.Fatalf("spot weight %v, want every spot below 0.5", s.Weight)
		}
	}
}

func TestBuild_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"no fields", func(o *Options) { o.Fields = 0 }},
		{"no layers", func(o *Options) { o.Layers = 0 }},
		{"no spots", func(o *Options) { o.SpotsPerLayer = 0 }},
		{"zero meterset", func(o *Options) { o.BeamMeterset = 0 }},
		{"negative dose", func(o *Options) { o.BeamDose = -1 }},
		{"share above one", func(o *Options) { o.LowWeightShare = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Quiet = true
			tt.modify(&opts)
			if _, _, err := Build(opts); err == nil {
				t.Error("Build() error = nil, want error")
			}
		})
	}
}

func TestGenerate_WritesFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputPath = filepath.Join(t.TempDir(), "sub", "plan.dcm")
	opts.Quiet = true

	if _, err := Generate(opts); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	info, err := os.Stat(opts.OutputPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestGenerate_RequiresPath(t *testing.T) {
	opts := DefaultOptions()
	opts.Quiet = true
	if _, err := Generate(opts); err == nil {
		t.Error("Generate() error = nil, want error for empty path")
	}
}
