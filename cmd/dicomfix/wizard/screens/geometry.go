package screens

import (
	"github.com/charmbracelet/huh"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
)

// NewGeometryScreen edits field duplication, angles, couch, snout, range
// shifter and repainting.
func NewGeometryScreen(cfg *types.GeometryConfig) *FormScreen {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("duplicate_fields").
				Title("Duplicate Fields").
				Placeholder("1").
				Value(&cfg.DuplicateFields).
				Validate(validateOptionalCount),

			huh.NewInput().
				Key("gantry_angles").
				Title("Gantry Angles [deg]").
				Placeholder("e.g. 0,90").
				Value(&cfg.GantryAngles).
				Validate(validateNumberList(0)),

			huh.NewInput().
				Key("repaint").
				Title("Repaintings").
				Placeholder("1").
				Value(&cfg.Repaint).
				Validate(validateOptionalCount),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("table_position").
				Title("Table Position [cm]").
				Placeholder("vertical,longitudinal,lateral").
				Value(&cfg.TablePosition).
				Validate(validateNumberList(3)),

			huh.NewInput().
				Key("snout_position").
				Title("Snout Position [cm]").
				Value(&cfg.SnoutPosition).
				Validate(validateOptionalFloat),

			huh.NewSelect[string]().
				Key("range_shifter").
				Title("Range Shifter").
				Options(
					huh.NewOption("Keep as planned", ""),
					huh.NewOption("RS_2CM", "RS_2CM"),
					huh.NewOption("RS_5CM", "RS_5CM"),
					huh.NewOption("Remove", "none"),
				).
				Value(&cfg.RangeShifter),
		),
	)
	return newFormScreen("Fields and Geometry", "Step 2 of 3", form, nil)
}
