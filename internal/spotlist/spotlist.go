// Package spotlist loads treatment plans as flat spot lists for particle
// transport export. Unlike the edit flow, only physical energy layers are
// kept and every spot carries its MU.
package spotlist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mrsinham/dicomfix/internal/dicom/rtplan"
	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrUnsupportedFormat is returned for plan files no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported plan format")

// Format identifies a plan file type.
type Format string

const (
	FormatDICOM  Format = "dcm"
	FormatPLD    Format = "pld"
	FormatRaster Format = "rst"
)

// DetectFormat picks the format from the file suffix.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm":
		return FormatDICOM, nil
	case ".pld":
		return FormatPLD, nil
	case ".rst":
		return FormatRaster, nil
	default:
		return "", fmt.Errorf("%w: unknown suffix of %s", ErrUnsupportedFormat, path)
	}
}

// Load reads path with the loader matching its suffix. scaling multiplies
// the particle count of every field.
func Load(path string, scaling float64) (*plan.Plan, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatDICOM:
		return LoadDICOM(path, scaling)
	case FormatPLD:
		return LoadPLD(path, scaling)
	default:
		return nil, fmt.Errorf("%w: GSI raster files are not supported yet", ErrUnsupportedFormat)
	}
}

// LoadDICOM reads an RT Ion Plan. Spot MU is the weight times the field's
// meterset per weight. Layers without MU are dropped.
func LoadDICOM(path string, scaling float64) (*plan.Plan, error) {
	doc, err := rtplan.Read(path)
	if err != nil {
		return nil, err
	}
	p, err := doc.Decode()
	if err != nil {
		return nil, err
	}
	p.Scaling = scaling
	p.VendorFactor = plan.VendorFactorVarian

	for _, f := range p.Fields {
		f.Scaling = scaling
		mpw, err := f.MetersetPerWeight()
		if err != nil {
			return nil, err
		}
		kept := f.Layers[:0]
		for _, l := range f.Layers {
			var cum float64
			for i := range l.Spots {
				l.Spots[i].MU = l.Spots[i].Weight * mpw
				cum += l.Spots[i].MU
			}
			if cum > 0 {
				kept = append(kept, l)
			}
		}
		f.Layers = kept
	}
	return p, nil
}
