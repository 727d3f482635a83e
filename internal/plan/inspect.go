package plan

import (
	"fmt"
	"io"
	"strings"
)

// HLine separates report blocks.
var HLine = strings.Repeat("-", 72)

// Inspect writes a human readable overview of the plan.
func Inspect(w io.Writer, p *Plan) {
	m := p.Metadata
	fmt.Fprintf(w, "Patient name             : '%s'\n", orNA(m.PatientName))
	fmt.Fprintf(w, "Patient ID               : '%s'\n", orNA(m.PatientID))
	fmt.Fprintf(w, "Approval status          : '%s'\n", orNA(m.ApprovalStatus))
	fmt.Fprintf(w, "RT Plan Date             : '%s'\n", orNA(m.PlanDate))
	fmt.Fprintf(w, "RT Plan Time             : '%s'\n", orNA(m.PlanTime))
	fmt.Fprintf(w, "Manufacturer             : '%s'\n", orNA(m.Manufacturer))
	fmt.Fprintf(w, "Plan Label               : '%s'\n", orNA(m.PlanLabel))
	fmt.Fprintf(w, "Operator's Name          : '%s'\n", orNA(m.OperatorsName))
	fmt.Fprintf(w, "Reviewer Name            : '%s'\n", orNA(m.ReviewerName))
	fmt.Fprintf(w, "Plan Intent              : '%s'\n", orNA(m.PlanIntent))
	fmt.Fprintf(w, "Number of fields         : %d\n", len(p.Fields))

	for i, f := range p.Fields {
		fmt.Fprintln(w, HLine)
		fmt.Fprintf(w, "    Field #%d\n", i+1)
		fmt.Fprintln(w, HLine)
		fmt.Fprintf(w, "    Beam Name                : '%s'\n", f.Name)
		fmt.Fprintf(w, "    Treatment Machine Name   : '%s'\n", orNA(f.TreatmentMachine))
		fmt.Fprintf(w, "    Number of control points : %d\n", len(f.Layers))
		fmt.Fprintf(w, "    Number of energy layers  : %d\n", f.PhysicalLayerCount())
		fmt.Fprintf(w, "    Beam Meterset            : %.2f MU\n", f.BeamMeterset)
		fmt.Fprintf(w, "    Beam Dose                : %.2f Gy(RBE)\n", f.BeamDose)
		fmt.Fprintf(w, "    Final Cumulative Meterset Weight : %.2f\n", f.FinalCumulativeMetersetWeight)
		g := f.Geometry
		fmt.Fprintf(w, "            Gantry Angle                     : %8.2f deg\n", g.GantryAngle)
		fmt.Fprintf(w, "            Snout Position                   : %8.2f cm\n", g.SnoutPosition*0.1)
		fmt.Fprintf(w, "            Table Top Vertical Position      : %8.2f cm\n", g.TableTopVertical*0.1)
		fmt.Fprintf(w, "            Table Top Longitudinal Position  : %8.2f cm\n", g.TableTopLongitudinal*0.1)
		fmt.Fprintf(w, "            Table Top Lateral Position       : %8.2f cm\n", g.TableTopLateral*0.1)
		if rs := f.RangeShifter; rs != nil {
			fmt.Fprintf(w, "            Range Shifter                    : %s (%.1f mm WET)\n", rs.ID, rs.WaterEquivalentThickness)
		}

		n := 0
		for _, l := range f.Layers {
			if l.IsEmpty() {
				continue
			}
			n++
			fmt.Fprintln(w, HLine)
			fmt.Fprintf(w, "        Energy Layer # %02d\n", n)
			fmt.Fprintf(w, "            Nominal Beam Energy              : %.2f MeV\n", l.NominalEnergy)
			fmt.Fprintf(w, "            Number of Scan Spot Positions    : %d\n", len(l.Spots))
			fmt.Fprintf(w, "            Cumulative Meterset Weight       : %.2f\n", l.CumulativeMetersetWeight)
		}
	}
	fmt.Fprintln(w, HLine)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
