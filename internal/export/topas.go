package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mrsinham/dicomfix/internal/beammodel"
	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrBeamModelRequired is returned when TOPAS export runs without a beam
// model carrying divergence columns.
var ErrBeamModelRequired = errors.New("TOPAS export needs a beam model with divergence and covariance")

// TopasOptions controls TOPAS parameter file output.
type TopasOptions struct {
	Nominal bool
	NStat   float64 // histories to simulate for the whole field

	// Source axis distances and the plane the beam model is given at, mm.
	SADX, SADY        float64
	BeamModelPosition float64

	Version string
	User    string
}

// DefaultTopasOptions returns the geometry of the Varian ProBeam nozzle.
func DefaultTopasOptions() TopasOptions {
	return TopasOptions{
		NStat:             1e6,
		SADX:              2000.0,
		SADY:              2560.0,
		BeamModelPosition: 500.0,
	}
}

type topasSpot struct {
	energy, espread float64
	posX, angX      float64
	posY, angY      float64
	sigX, sigY      float64
	sigXp, sigYp    float64
	corX, corY      float64
	weight          float64
}

// WriteTopas writes a TOPAS time feature parameter file delivering the
// spots of f in sequence. Spot histories are the particle counts scaled so
// the field totals opts.NStat.
func WriteTopas(w io.Writer, f *plan.Field, sopInstanceUID string, bm *beammodel.Model, opts TopasOptions, now time.Time) error {
	if bm == nil || !bm.HasDivergence() {
		return ErrBeamModelRequired
	}

	var spots []topasSpot
	var total, cumMU float64
	layers := 0
	for _, l := range f.Layers {
		pt, err := bm.Lookup(l.NominalEnergy)
		if err != nil {
			return fmt.Errorf("field %d: %w", f.Number, err)
		}
		energy := l.MeasuredEnergy
		if opts.Nominal {
			energy = l.NominalEnergy
		}
		for _, s := range l.Spots {
			spots = append(spots, topasSpot{
				energy:  energy,
				espread: l.EnergySpread,
				posX:    s.X,
				angX:    math.Atan(s.X/(opts.SADX-opts.BeamModelPosition)) * 180 / math.Pi,
				posY:    s.Y,
				angY:    math.Atan(s.Y/(opts.SADY-opts.BeamModelPosition)) * 180 / math.Pi,
				sigX:    pt.SigmaX,
				sigY:    pt.SigmaY,
				sigXp:   pt.DivX,
				sigYp:   pt.DivY,
				corX:    pt.CovX,
				corY:    pt.CovY,
				weight:  s.Particles,
			})
			total += s.Particles
			cumMU += s.MU
		}
		layers++
	}
	if total <= 0 {
		return fmt.Errorf("field %d: no particles to export", f.Number)
	}
	scale := opts.NStat / total * f.Scaling
	n := len(spots)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#PARTICLE_SCALING = %.0f\n", 1/scale)
	fmt.Fprintf(bw, "#SOPInstanceUID = %s\n", sopInstanceUID)
	bw.WriteString(topasPreamble)

	bw.WriteString(banner("T  I  M  E    F  E  A  T  U  R  E  S"))
	bw.WriteString("\n")
	fmt.Fprintf(bw, "i:Tf/NumberOfSequentialTimes         = %d\n", n)
	fmt.Fprintf(bw, "d:Tf/TimelineStart                   = 1 s\n")
	fmt.Fprintf(bw, "d:Tf/TimelineEnd                     = %d s\n\n", n+1)

	column := func(get func(topasSpot) float64) []float64 {
		out := make([]float64, n)
		for i, s := range spots {
			out[i] = get(s)
		}
		return out
	}
	arrays := []struct {
		name      string
		precision int
		unit      string
		values    []float64
	}{
		{"Energy", 3, "MeV", column(func(s topasSpot) float64 { return s.energy })},
		{"EnergySpread", 5, "", column(func(s topasSpot) float64 { return s.espread })},
		{"spotPositionX", 2, "mm", column(func(s topasSpot) float64 { return s.posX })},
		{"spotAngleX", 3, "deg", column(func(s topasSpot) float64 { return s.angX })},
		{"spotPositionY", 2, "mm", column(func(s topasSpot) float64 { return s.posY })},
		{"spotAngleY", 3, "deg", column(func(s topasSpot) float64 { return s.angY })},
		{"SigmaX", 5, "mm", column(func(s topasSpot) float64 { return s.sigX })},
		{"SigmaY", 5, "mm", column(func(s topasSpot) float64 { return s.sigY })},
		{"SigmaXprime", 5, "", column(func(s topasSpot) float64 { return s.sigXp })},
		{"SigmaYprime", 5, "", column(func(s topasSpot) float64 { return s.sigYp })},
		{"CorrelationX", 5, "", column(func(s topasSpot) float64 { return s.corX })},
		{"CorrelationY", 5, "", column(func(s topasSpot) float64 { return s.corY })},
		{"spotWeight", 0, "", column(func(s topasSpot) float64 { return s.weight * scale })},
	}
	for _, a := range arrays {
		writeTopasArray(bw, a.name, a.precision, a.unit, a.values)
	}

	fmt.Fprintf(bw, "#Total number of particles: %.0f\n", total)
	fmt.Fprintf(bw, "#Total number of particles scaled down by %.0f\n", 1/scale)
	fmt.Fprintf(bw, "#Total MU in field: %.2f\n", cumMU)
	fmt.Fprintf(bw, "#Number of energy layers: %d\n", layers)
	fmt.Fprintf(bw, "\n\n# Generated %s by user '%s' using dicomfix %s\n",
		now.Format("2006-01-02 15:04:05"), opts.User, opts.Version)
	return bw.Flush()
}

// Topas writes field number fieldNr (counting from 1) to path, or every
// field to its own FieldFileName file when fieldNr is 0.
func Topas(path string, p *plan.Plan, fieldNr int, bm *beammodel.Model, opts TopasOptions, now time.Time) ([]string, error) {
	if fieldNr < 0 || fieldNr > len(p.Fields) {
		return nil, fmt.Errorf("field %d not in plan with %d fields", fieldNr, len(p.Fields))
	}
	var files []string
	for i, f := range p.Fields {
		out := path
		switch {
		case fieldNr == 0:
			out = FieldFileName(path, i+1)
		case fieldNr != i+1:
			continue
		}
		err := writeFile(out, func(w io.Writer) error {
			return WriteTopas(w, f, p.Metadata.SOPInstanceUID, bm, opts, now)
		})
		if err != nil {
			return files, err
		}
		files = append(files, out)
	}
	return files, nil
}

// writeTopasArray writes one step function over the spot timeline. Values
// without unit are written as unitless vectors.
func writeTopasArray(w *bufio.Writer, name string, precision int, unit string, values []float64) {
	n := len(values)
	times := make([]string, n)
	vals := make([]string, n)
	for i, v := range values {
		times[i] = fmt.Sprint(i + 1)
		vals[i] = fmt.Sprintf("%.*f", precision, v)
	}
	prefix := "dv"
	if unit == "" {
		prefix = "uv"
	}
	fmt.Fprintf(w, "s:Tf/%s/Function                 = \"Step\"\n", name)
	fmt.Fprintf(w, "dv:Tf/%s/Times                   = %d %s s\n", name, n, strings.Join(times, " "))
	fmt.Fprintf(w, "%s:Tf/%s/Values                   = %d %s %s\n\n\n", prefix, name, n, strings.Join(vals, " "), unit)
}

func banner(title string) string {
	const rule = "##############################################\n"
	pad := (40 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	line := fmt.Sprintf("###%s%-*s###\n", strings.Repeat(" ", pad), 40-pad, title)
	return rule + line + rule
}

var topasPreamble = strings.Join([]string{
	banner("V A R I A B L E S"),
	`d:Rt/Plan/IsoCenterX                 = 0.00 mm
d:Rt/Plan/IsoCenterY                 = 0.00 mm
d:Rt/Plan/IsoCenterZ                 = 0.00 mm
d:Ge/snoutPosition                   = 421.00 mm
d:Ge/gantryAngle                     = 0.00 deg
d:Ge/couchAngle                      = 0.00 deg
dc:Ge/Patient/DicomOriginX           = 0.00 mm
dc:Ge/Patient/DicomOriginY           = 0.00 mm
dc:Ge/Patient/DicomOriginZ           = 0.00 mm

`,
	banner("T O P A S    S E T U P"),
	`i:Ts/ShowHistoryCountAtInterval         = 100000
i:Ts/NumberOfThreads                    = 0 # 0 for using all cores, -1 for all but one
b:Ts/DumpParameters                     = "False"
b:Ge/Patient/IgnoreInconsistentFrameOfReferenceUID = "True"

`,
	banner("W O R L D    S E T U P"),
	`s:Ge/World/Type            = "TsBox"
s:Ge/World/Material        = "Air"
d:Ge/World/HLX             = 90. cm
d:Ge/World/HLY             = 90. cm
d:Ge/World/HLZ             = 90. cm
b:Ge/World/Invisible       = "True"

`,
	banner("G E O M E T R Y"),
	`s:Ge/Gantry/Parent                   = "DCM_to_IEC"
s:Ge/Gantry/Type                     = "Group"
d:Ge/Gantry/TransX                   = 0.00 mm
d:Ge/Gantry/TransY                   = 0.00 mm
d:Ge/Gantry/TransZ                   = 0.00 mm
d:Ge/Gantry/RotX                     = 0.00 deg
d:Ge/Gantry/RotY                     = Ge/gantryAngle deg
d:Ge/Gantry/RotZ                     = 0.00 deg

s:Ge/Couch/Parent                  = "World"
s:Ge/Couch/Type                    = "Group"
d:Ge/Couch/RotX                    = 0. deg
d:Ge/Couch/RotY                    = -1.0 * Ge/couchAngle deg
d:Ge/Couch/RotZ                    = 0. deg
d:Ge/Couch/TransX                  = 0.0 mm
d:Ge/Couch/TransY                  = 0.0 mm
d:Ge/Couch/TransZ                  = 0.0 mm

s:Ge/DCM_to_IEC/Parent               = "Couch"
s:Ge/DCM_to_IEC/Type                 = "Group"
d:Ge/DCM_to_IEC/TransX               = 0.0 mm
d:Ge/DCM_to_IEC/TransY               = 0.0 mm
d:Ge/DCM_to_IEC/TransZ               = 0.0 mm
d:Ge/DCM_to_IEC/RotX                 = 90.00 deg
d:Ge/DCM_to_IEC/RotY                 = 0.0 deg
d:Ge/DCM_to_IEC/RotZ                 = 0.0 deg

s:Ge/BeamPosition/Parent             = "Gantry"
s:Ge/BeamPosition/Type               = "Group"
d:Ge/BeamPosition/TransZ             = -500.0 mm
d:Ge/BeamPosition/TransX             = Tf/spotPositionX/Value mm
d:Ge/BeamPosition/TransY             = -1.0 * Tf/spotPositionY/Value mm
d:Ge/BeamPosition/RotX               = -1.0 * Tf/spotAngleY/Value deg
d:Ge/BeamPosition/RotY               = -1.0 * Tf/spotAngleX/Value deg
d:Ge/BeamPosition/RotZ               = 0.00 deg

`,
	banner("B  E  A  M"),
	`s:So/Field/Type                      = "Emittance"
s:So/Field/Component                 = "BeamPosition"
s:So/Field/BeamParticle              = "proton"
d:So/Field/BeamEnergy                = Tf/Energy/Value MeV
u:So/Field/BeamEnergySpread          = Tf/EnergySpread/Value
s:So/Field/Distribution              = "BiGaussian"
d:So/Field/SigmaX                    = Tf/SigmaX/Value mm
d:So/Field/SigmaY                    = Tf/SigmaY/Value mm
u:So/Field/SigmaXprime               = Tf/SigmaXprime/Value
u:So/Field/SigmaYprime               = Tf/SigmaYprime/Value
u:So/Field/CorrelationX              = Tf/CorrelationX/Value
u:So/Field/CorrelationY              = Tf/CorrelationY/Value

i:So/Field/NumberOfHistoriesInRun    = Tf/spotWeight/Value

`,
}, "")
