package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrsinham/dicomfix/internal/plan/plantest"
)

func TestSpotMap_CountsDiscardedSpots(t *testing.T) {
	before := plantest.Field(1, 1.0, 10, []float64{1, 2, 3}, []float64{4, 5})
	after := before.Clone()
	after.Layers[0].Spots[1].Weight = 0
	after.Layers[2].Spots[0].Weight = 0

	img, st := SpotMap(before, after, DefaultOptions())
	if st.Admitted != 3 {
		t.Errorf("Admitted = %d, want 3", st.Admitted)
	}
	if st.Discarded != 2 {
		t.Errorf("Discarded = %d, want 2", st.Discarded)
	}
	if st.EnergyMin != 100 || st.EnergyMax != 110 {
		t.Errorf("energy range = %v-%v, want 100-110", st.EnergyMin, st.EnergyMax)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 640 {
		t.Errorf("image size = %v, want 640x640", b.Size())
	}
}

func TestSpotMap_WithoutReference(t *testing.T) {
	f := plantest.Field(1, 1.0, 10, []float64{1, 0})
	_, st := SpotMap(nil, f, DefaultOptions())
	if st.Admitted != 1 || st.Discarded != 0 {
		t.Errorf("stats = %+v, want 1 admitted and none discarded", st)
	}
}

func TestSpotMap_EmptyField(t *testing.T) {
	f := plantest.Field(1, 1.0, 10)
	img, st := SpotMap(nil, f, DefaultOptions())
	if img == nil {
		t.Fatal("SpotMap() returned nil image")
	}
	if st != (Stats{}) {
		t.Errorf("stats = %+v, want zero", st)
	}
}

func TestWriteSpotMaps(t *testing.T) {
	before := plantest.Plan(
		plantest.Field(1, 1.0, 10, []float64{1, 2}),
		plantest.Field(2, 1.0, 10, []float64{3, 4}),
	)
	after := before.Clone()
	dir := filepath.Join(t.TempDir(), "maps")

	files, err := WriteSpotMaps(dir, before, after, Options{Size: 128, Margin: 8, Padding: 5, LabelZoom: 1})
	if err != nil {
		t.Fatalf("WriteSpotMaps() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("wrote %d files, want 2", len(files))
	}
	if filepath.Base(files[1]) != "field_02.png" {
		t.Errorf("file name = %q, want field_02.png", filepath.Base(files[1]))
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width = %d, want 128", img.Bounds().Dx())
	}
}
