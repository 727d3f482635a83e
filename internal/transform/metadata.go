package transform

import (
	"time"

	"github.com/mrsinham/dicomfix/internal/plan"
	"github.com/mrsinham/dicomfix/internal/util"
)

// ApprovalStatusApproved is the DICOM approval status set by Approve.
const ApprovalStatusApproved = "APPROVED"

// Approve marks the plan as approved.
func Approve(p *plan.Plan) {
	p.Metadata.ApprovalStatus = ApprovalStatusApproved
}

// SetCurrentDate stamps the plan date and time with now.
func SetCurrentDate(p *plan.Plan, now time.Time) {
	p.Metadata.PlanDate = now.Format("20060102")
	p.Metadata.PlanTime = now.Format("150405.000000")
}

// SetIntent sets the plan intent.
func SetIntent(p *plan.Plan, intent util.PlanIntent) {
	p.Metadata.PlanIntent = intent.String()
}

// SetTreatmentMachine sets the machine name of every field.
func SetTreatmentMachine(p *plan.Plan, name string) {
	for _, f := range p.Fields {
		f.TreatmentMachine = name
	}
}

// SetPlanLabel sets the RT plan label.
func SetPlanLabel(p *plan.Plan, label string) {
	p.Metadata.PlanLabel = label
}

// SetPatientName sets the patient name, "LAST^FIRST".
func SetPatientName(p *plan.Plan, name string) {
	p.Metadata.PatientName = name
}

func SetReviewerName(p *plan.Plan, name string) {
	p.Metadata.ReviewerName = name
}

// SetTag records a registered attribute override. Attributes with a
// dedicated metadata field are written there as well.
func SetTag(p *plan.Plan, info util.TagInfo, value string) {
	switch info.Name {
	case "PatientName":
		p.Metadata.PatientName = value
	case "PatientID":
		p.Metadata.PatientID = value
	case "RTPlanLabel":
		p.Metadata.PlanLabel = value
	case "RTPlanDate":
		p.Metadata.PlanDate = value
	case "RTPlanTime":
		p.Metadata.PlanTime = value
	case "ApprovalStatus":
		p.Metadata.ApprovalStatus = value
	case "PlanIntent":
		p.Metadata.PlanIntent = value
	case "ReviewerName":
		p.Metadata.ReviewerName = value
	case "OperatorsName":
		p.Metadata.OperatorsName = value
	case "Manufacturer":
		p.Metadata.Manufacturer = value
	case "TreatmentMachineName":
		SetTreatmentMachine(p, value)
		return
	}
	if p.Metadata.Tags == nil {
		p.Metadata.Tags = map[string]string{}
	}
	p.Metadata.Tags[info.Name] = value
}
