package help

// HelpText describes one wizard field.
type HelpText struct {
	Title       string
	Description string
	Details     string
	Flag        string // equivalent command line flag
}

// Texts is keyed by the huh field key.
var Texts = map[string]HelpText{
	"input": {
		Title:       "INPUT PLAN",
		Description: "RT Ion Plan to edit.",
		Details:     "A DICOM file with an IonBeamSequence. The file itself is never modified.",
	},
	"output": {
		Title:       "OUTPUT PLAN",
		Description: "Where the edited plan is written.",
		Details:     "Left empty, the plan goes to output.dcm unless the job only inspects.",
		Flag:        "--output",
	},
	"rescale_mode": {
		Title:       "RESCALING",
		Description: "How spot weights are scaled.",
		Details: `factor   - multiply every weight by a constant
dose     - scale each field to a target beam dose in Gy
minimize - smallest spot lands exactly on the minimum MU
weights  - one factor per energy layer from a text file`,
	},
	"rescale_value": {
		Title:       "FACTOR OR DOSE",
		Description: "Scale factor, or target beam dose in Gy.",
		Details:     "Ignored for minimize and per-layer weights.",
		Flag:        "--rescale-factor / --rescale-dose",
	},
	"weights_file": {
		Title:       "WEIGHTS FILE",
		Description: "One factor per energy layer, in delivery order.",
		Details:     "Whitespace separated numbers; lines starting with # are skipped. The count must match the layers of every field.",
		Flag:        "--weights",
	},
	"min_mu": {
		Title:       "MINIMUM MU",
		Description: "Smallest deliverable spot.",
		Details:     "Spots below this after rescaling are set to zero weight and reported.",
		Flag:        "--min-mu",
	},
	"inspect": {
		Title:       "INSPECT",
		Description: "Print a plan overview before writing.",
		Flag:        "--inspect",
	},
	"spot_map": {
		Title:       "SPOT MAPS",
		Description: "Directory for one PNG per field.",
		Details:     "Admitted spots are colored by energy, discarded spots drawn as red crosses.",
		Flag:        "--spot-map",
	},
	"duplicate_fields": {
		Title:       "DUPLICATE FIELDS",
		Description: "Repeat every field N times.",
		Details:     "Copies after the first get a _2, _3 ... suffix and new beam numbers.",
		Flag:        "--duplicate-fields",
	},
	"gantry_angles": {
		Title:       "GANTRY ANGLES",
		Description: "Comma separated angles in degrees, one per field after duplication.",
		Flag:        "--gantry-angles",
	},
	"table_position": {
		Title:       "TABLE POSITION",
		Description: "Couch vertical,longitudinal,lateral in cm.",
		Flag:        "--table-position",
	},
	"snout_position": {
		Title:       "SNOUT POSITION",
		Description: "Snout position in cm.",
		Flag:        "--snout-position",
	},
	"range_shifter": {
		Title:       "RANGE SHIFTER",
		Description: "Insert, replace or remove the range shifter.",
		Details:     "RS_2CM and RS_5CM carry their water equivalent thickness. 'none' removes every shifter.",
		Flag:        "--range-shifter",
	},
	"repaint": {
		Title:       "REPAINT",
		Description: "Split every spot over N paintings.",
		Details:     "Spots whose share falls below the minimum MU are rejected.",
		Flag:        "--repaint",
	},
	"treatment_machine": {
		Title:       "TREATMENT MACHINE",
		Description: "Machine name written to every beam.",
		Flag:        "--treatment-machine",
	},
	"plan_label": {
		Title:       "PLAN LABEL",
		Description: "RT plan label.",
		Flag:        "--plan-label",
	},
	"patient_name": {
		Title:       "PATIENT NAME",
		Description: "DICOM person name, e.g. DOE^JANE.",
		Flag:        "--patient-name",
	},
	"reviewer_name": {
		Title:       "REVIEWER NAME",
		Description: "Name recorded with the approval.",
		Flag:        "--reviewer-name",
	},
	"intent": {
		Title:       "PLAN INTENT",
		Description: "DICOM plan intent.",
		Flag:        "--intent",
	},
	"flags": {
		Title:       "PLAN FLAGS",
		Description: "Approval and machine specific fixes.",
		Details: `approve        - status APPROVED
date           - plan and review dates set to now
wizard TR4     - approve, machine TR4, gantry 90, snout 42.1 cm
fix RayStation - make a RayStation export deliverable`,
	},
}
