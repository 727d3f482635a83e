package screens

import (
	"github.com/charmbracelet/huh"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
)

// NewPlanScreen edits the input, output and rescaling of the job. It is
// the first step, so Esc cancels.
func NewPlanScreen(cfg *types.PlanConfig) *FormScreen {
	if cfg.RescaleMode == "" {
		cfg.RescaleMode = types.RescaleNone
	}
	if cfg.MinMU == "" {
		cfg.MinMU = "1"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("input").
				Title("Input Plan").
				Placeholder("plan.dcm").
				Value(&cfg.Input).
				Validate(validateRequired("input plan")),

			huh.NewInput().
				Key("output").
				Title("Output Plan").
				Placeholder("output.dcm").
				Value(&cfg.Output),

			huh.NewSelect[string]().
				Key("rescale_mode").
				Title("Rescaling").
				Options(
					huh.NewOption("No rescaling", types.RescaleNone),
					huh.NewOption("Constant factor", types.RescaleFactor),
					huh.NewOption("Target beam dose", types.RescaleDose),
					huh.NewOption("Smallest spot to minimum MU", types.RescaleMinimize),
					huh.NewOption("Per-layer weights file", types.RescaleWeights),
				).
				Value(&cfg.RescaleMode),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("rescale_value").
				Title("Factor or Dose [Gy]").
				Value(&cfg.RescaleValue).
				Validate(validateOptionalFloat),

			huh.NewInput().
				Key("weights_file").
				Title("Weights File").
				Value(&cfg.WeightsFile),

			huh.NewInput().
				Key("min_mu").
				Title("Minimum MU").
				Value(&cfg.MinMU).
				Validate(validatePositiveFloat),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("inspect").
				Title("Print plan overview?").
				Value(&cfg.Inspect),

			huh.NewInput().
				Key("spot_map").
				Title("Spot Map Directory").
				Placeholder("leave empty to skip").
				Value(&cfg.SpotMapDir),
		),
	)

	s := newFormScreen("Plan and Rescaling", "Step 1 of 3", form, nil)
	s.first = true
	return s
}
