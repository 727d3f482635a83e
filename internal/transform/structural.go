// Package transform holds the edits applied to a plan after loading:
// structural changes (field duplication, repainting), geometry and machine
// overrides, metadata changes and range shifter installation.
//
// Each operation mutates the plan in place. Ordering relative to the rescale
// engine is owned by the edit session.
package transform

import (
	"fmt"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// DuplicateFields replaces every field by n consecutive copies and renumbers
// all fields from 1. Copies after the first get a " (k/n)" name suffix and
// share the source Origin.
func DuplicateFields(p *plan.Plan, n int) error {
	if n < 1 {
		return fmt.Errorf("duplicate count must be >= 1, got %d", n)
	}
	if n == 1 {
		return nil
	}
	out := make([]*plan.Field, 0, len(p.Fields)*n)
	for _, f := range p.Fields {
		for k := 1; k <= n; k++ {
			c := f.Clone()
			if k > 1 {
				c.Name = fmt.Sprintf("%s (%d/%d)", f.Name, k, n)
			}
			out = append(out, c)
		}
	}
	for i, f := range out {
		f.Number = i + 1
	}
	p.Fields = out
	return nil
}

// SetGantryAngles sets one gantry angle per field, in degrees.
func SetGantryAngles(p *plan.Plan, angles []float64) error {
	if len(angles) != len(p.Fields) {
		return fmt.Errorf("%d gantry angles given for %d fields: %w", len(angles), len(p.Fields), plan.ErrFieldCount)
	}
	for i, f := range p.Fields {
		f.Geometry.GantryAngle = angles[i]
	}
	return nil
}

// SetTablePosition sets the table top position of every field, in mm.
func SetTablePosition(p *plan.Plan, vertical, longitudinal, lateral float64) {
	for _, f := range p.Fields {
		f.Geometry.TableTopVertical = vertical
		f.Geometry.TableTopLongitudinal = longitudinal
		f.Geometry.TableTopLateral = lateral
	}
}

// SetSnoutPosition sets the snout position of every field, in mm.
func SetSnoutPosition(p *plan.Plan, mm float64) {
	for _, f := range p.Fields {
		f.Geometry.SnoutPosition = mm
	}
}

// TR4 setup used by WizardTR4.
const (
	TR4Machine       = "TR4"
	TR4GantryAngle   = 90.0
	TR4SnoutPosition = 421.0 // mm
)

// WizardTR4 prepares a plan for delivery in treatment room 4: approved,
// machine TR4, horizontal gantry and the fixed snout position.
func WizardTR4(p *plan.Plan) {
	Approve(p)
	SetTreatmentMachine(p, TR4Machine)
	for _, f := range p.Fields {
		f.Geometry.GantryAngle = TR4GantryAngle
	}
	SetSnoutPosition(p, TR4SnoutPosition)
}
