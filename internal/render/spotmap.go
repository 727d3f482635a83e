// Package render draws spot maps of treatment fields as PNG images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// Options controls the image layout.
type Options struct {
	Size      int     // width and height in pixels
	Margin    int     // pixels kept free around the spot area
	Padding   float64 // mm added around the spot extent
	LabelZoom int     // integer upscale of the 7x13 label font
}

// DefaultOptions returns a 640 pixel square layout.
func DefaultOptions() Options {
	return Options{Size: 640, Margin: 48, Padding: 10, LabelZoom: 2}
}

var (
	background = color.RGBA{16, 16, 24, 255}
	axisColor  = color.RGBA{70, 70, 90, 255}
	discarded  = color.RGBA{255, 60, 60, 255}
	labelColor = color.RGBA{230, 230, 230, 255}
)

// Stats summarizes what a spot map shows.
type Stats struct {
	Admitted  int
	Discarded int
	EnergyMin float64
	EnergyMax float64
}

// SpotMap draws the physical layers of after. Spots with weight in before
// but none in after are drawn as red crosses. before may be nil.
func SpotMap(before, after *plan.Field, opts Options) (*image.RGBA, Stats) {
	img := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	var st Stats
	st.EnergyMin, st.EnergyMax = math.Inf(1), math.Inf(-1)
	xmin, xmax, ymin, ymax := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	var wmax float64
	for _, l := range after.Layers {
		for _, s := range l.Spots {
			xmin, xmax = math.Min(xmin, s.X), math.Max(xmax, s.X)
			ymin, ymax = math.Min(ymin, s.Y), math.Max(ymax, s.Y)
			wmax = math.Max(wmax, s.Weight)
		}
		if !l.IsEmpty() {
			st.EnergyMin = math.Min(st.EnergyMin, l.NominalEnergy)
			st.EnergyMax = math.Max(st.EnergyMax, l.NominalEnergy)
		}
	}
	if math.IsInf(xmin, 1) {
		return img, Stats{}
	}

	// square extent centred on the spots, y pointing up
	half := math.Max(xmax-xmin, ymax-ymin)/2 + opts.Padding
	cx, cy := (xmin+xmax)/2, (ymin+ymax)/2
	area := float64(opts.Size - 2*opts.Margin)
	toPixel := func(x, y float64) (int, int) {
		px := float64(opts.Margin) + (x-cx+half)/(2*half)*area
		py := float64(opts.Margin) + (cy+half-y)/(2*half)*area
		return int(math.Round(px)), int(math.Round(py))
	}

	ox, oy := toPixel(0, 0)
	for i := opts.Margin; i < opts.Size-opts.Margin; i++ {
		img.Set(i, oy, axisColor)
		img.Set(ox, i, axisColor)
	}

	for li, l := range after.Layers {
		var prev *plan.Layer
		if before != nil && li < len(before.Layers) {
			prev = before.Layers[li]
		}
		c := energyColor(l.NominalEnergy, st.EnergyMin, st.EnergyMax)
		for si, s := range l.Spots {
			px, py := toPixel(s.X, s.Y)
			switch {
			case s.Weight > 0:
				r := 2 + 5*math.Sqrt(s.Weight/wmax)
				fillCircle(img, px, py, r, c)
				st.Admitted++
			case prev != nil && si < len(prev.Spots) && prev.Spots[si].Weight > 0:
				drawCross(img, px, py, 4, discarded)
				st.Discarded++
			}
		}
	}

	label := fmt.Sprintf("%s  %.1f-%.1f MeV  spots %d  discarded %d",
		after.Name, st.EnergyMin, st.EnergyMax, st.Admitted, st.Discarded)
	drawLabel(img, label, 8, 8, opts.LabelZoom)
	return img, st
}

// energyColor maps energy onto a blue to red ramp.
func energyColor(e, lo, hi float64) color.RGBA {
	t := 0.5
	if hi > lo {
		t = (e - lo) / (hi - lo)
	}
	return color.RGBA{uint8(40 + 215*t), uint8(120 + 60*(1-math.Abs(2*t-1))), uint8(255 - 215*t), 255}
}

func fillCircle(img *image.RGBA, cx, cy int, r float64, c color.Color) {
	ri := int(math.Ceil(r))
	for dy := -ri; dy <= ri; dy++ {
		for dx := -ri; dx <= ri; dx++ {
			if float64(dx*dx+dy*dy) <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawCross(img *image.RGBA, cx, cy, r int, c color.Color) {
	for d := -r; d <= r; d++ {
		img.Set(cx+d, cy+d, c)
		img.Set(cx+d, cy-d, c)
	}
}

// drawLabel renders text with the 7x13 bitmap font and scales it up by zoom.
func drawLabel(img *image.RGBA, text string, x, y, zoom int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := 13
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(11)},
	}
	d.DrawString(text)

	zoom = max(zoom, 1)
	dst := image.Rect(x, y, x+w*zoom, y+h*zoom)
	draw.NearestNeighbor.Scale(img, dst, small, small.Bounds(), draw.Over, nil)
}

// WriteSpotMaps writes one PNG per field of after into dir. Fields are
// matched to before through their source beam, so duplicated fields compare
// against the same original.
func WriteSpotMaps(dir string, before, after *plan.Plan, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spot map directory: %w", err)
	}
	byOrigin := map[int]*plan.Field{}
	if before != nil {
		for _, f := range before.Fields {
			byOrigin[f.Origin] = f
		}
	}

	var files []string
	for _, f := range after.Fields {
		img, _ := SpotMap(byOrigin[f.Origin], f, opts)
		path := filepath.Join(dir, fmt.Sprintf("field_%02d.png", f.Number))
		if err := writePNG(path, img); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
