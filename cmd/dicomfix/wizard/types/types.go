// Package types holds the job state edited by the wizard screens. Numbers
// are kept as strings because huh inputs bind to strings.
package types

// Rescale modes offered by the plan screen.
const (
	RescaleNone     = "none"
	RescaleFactor   = "factor"
	RescaleDose     = "dose"
	RescaleMinimize = "minimize"
	RescaleWeights  = "weights"
)

// Job is the wizard's view of an edit job.
type Job struct {
	Plan     PlanConfig
	Geometry GeometryConfig
	Metadata MetadataConfig

	// Options the wizard does not edit but keeps when a job file is
	// loaded and saved again.
	Tags            map[string]string
	PrintSpots      int
	ExportRacehorse string
	AuditDB         string
	MetricsFile     string
}

// PlanConfig holds the input, output and rescaling settings.
type PlanConfig struct {
	Input        string
	Output       string
	RescaleMode  string
	RescaleValue string // factor or dose, depending on RescaleMode
	WeightsFile  string
	MinMU        string
	Inspect      bool
	SpotMapDir   string
}

// GeometryConfig holds the field structure and geometry settings.
type GeometryConfig struct {
	DuplicateFields string
	GantryAngles    string // comma separated
	TablePosition   string // cm
	SnoutPosition   string // cm
	RangeShifter    string // "" keeps the plan's devices
	Repaint         string
}

// MetadataConfig holds plan metadata changes.
type MetadataConfig struct {
	TreatmentMachine string
	PlanLabel        string
	PatientName      string
	ReviewerName     string
	Intent           string
	Approve          bool
	Date             bool
	WizardTR4        bool
	FixRayStation    bool
}
