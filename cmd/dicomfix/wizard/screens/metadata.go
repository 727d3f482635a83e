package screens

import (
	"github.com/charmbracelet/huh"

	"github.com/mrsinham/dicomfix/cmd/dicomfix/wizard/types"
	"github.com/mrsinham/dicomfix/internal/util"
)

const (
	flagApprove       = "approve"
	flagDate          = "date"
	flagWizardTR4     = "tr4"
	flagFixRayStation = "raystation"
)

// NewMetadataScreen edits the plan metadata and the approval flags.
func NewMetadataScreen(cfg *types.MetadataConfig) *FormScreen {
	var flags []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{flagApprove, cfg.Approve},
		{flagDate, cfg.Date},
		{flagWizardTR4, cfg.WizardTR4},
		{flagFixRayStation, cfg.FixRayStation},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}

	intents := []huh.Option[string]{huh.NewOption("Unchanged", "")}
	for i := util.IntentCurative; i <= util.IntentService; i++ {
		intents = append(intents, huh.NewOption(i.String(), i.String()))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("treatment_machine").
				Title("Treatment Machine").
				Value(&cfg.TreatmentMachine),

			huh.NewInput().
				Key("plan_label").
				Title("Plan Label").
				Value(&cfg.PlanLabel),

			huh.NewInput().
				Key("patient_name").
				Title("Patient Name").
				Value(&cfg.PatientName),

			huh.NewInput().
				Key("reviewer_name").
				Title("Reviewer Name").
				Value(&cfg.ReviewerName),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("intent").
				Title("Plan Intent").
				Options(intents...).
				Value(&cfg.Intent),

			huh.NewMultiSelect[string]().
				Key("flags").
				Title("Plan Flags").
				Options(
					huh.NewOption("Approve", flagApprove),
					huh.NewOption("Set dates to now", flagDate),
					huh.NewOption("Prepare for TR4", flagWizardTR4),
					huh.NewOption("Fix RayStation export", flagFixRayStation),
				).
				Value(&flags),
		),
	)

	sync := func() {
		cfg.Approve, cfg.Date, cfg.WizardTR4, cfg.FixRayStation = false, false, false, false
		for _, f := range flags {
			switch f {
			case flagApprove:
				cfg.Approve = true
			case flagDate:
				cfg.Date = true
			case flagWizardTR4:
				cfg.WizardTR4 = true
			case flagFixRayStation:
				cfg.FixRayStation = true
			}
		}
	}
	return newFormScreen("Plan Metadata", "Step 3 of 3", form, sync)
}
