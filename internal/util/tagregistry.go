// Package util holds small helpers shared by the plan codec, the edit
// pipeline and the command line: the attribute registry, parsers, the plan
// intent enum, UIDs, generated names and report formatting.
package util

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagScope is where in an RT Ion Plan an attribute lives.
type TagScope int

const (
	// ScopePatient attributes sit in the patient module of the dataset.
	ScopePatient TagScope = iota
	// ScopePlan attributes sit in the RT general plan or approval modules.
	ScopePlan
	// ScopeBeam attributes are repeated on every ion beam item.
	ScopeBeam
)

// String returns the scope name.
func (s TagScope) String() string {
	switch s {
	case ScopePatient:
		return "Patient"
	case ScopePlan:
		return "Plan"
	case ScopeBeam:
		return "Beam"
	default:
		return "Unknown"
	}
}

// TagInfo describes an attribute that can be overridden with --tag.
type TagInfo struct {
	Name  string
	Tag   tag.Tag
	Scope TagScope
}

// tagRegistry maps lowercase keywords to their TagInfo. Attributes the
// pipeline computes itself (weights, metersets, beam numbers) are not listed.
var tagRegistry = map[string]TagInfo{
	"patientname":      {Name: "PatientName", Tag: tag.PatientName, Scope: ScopePatient},
	"patientid":        {Name: "PatientID", Tag: tag.PatientID, Scope: ScopePatient},
	"patientbirthdate": {Name: "PatientBirthDate", Tag: tag.PatientBirthDate, Scope: ScopePatient},
	"patientsex":       {Name: "PatientSex", Tag: tag.PatientSex, Scope: ScopePatient},

	"rtplanlabel":       {Name: "RTPlanLabel", Tag: tag.RTPlanLabel, Scope: ScopePlan},
	"rtplanname":        {Name: "RTPlanName", Tag: tag.RTPlanName, Scope: ScopePlan},
	"rtplandescription": {Name: "RTPlanDescription", Tag: tag.RTPlanDescription, Scope: ScopePlan},
	"rtplandate":        {Name: "RTPlanDate", Tag: tag.RTPlanDate, Scope: ScopePlan},
	"rtplantime":        {Name: "RTPlanTime", Tag: tag.RTPlanTime, Scope: ScopePlan},
	"planintent":        {Name: "PlanIntent", Tag: tag.PlanIntent, Scope: ScopePlan},
	"approvalstatus":    {Name: "ApprovalStatus", Tag: tag.ApprovalStatus, Scope: ScopePlan},
	"reviewername":      {Name: "ReviewerName", Tag: tag.ReviewerName, Scope: ScopePlan},
	"reviewdate":        {Name: "ReviewDate", Tag: tag.ReviewDate, Scope: ScopePlan},
	"reviewtime":        {Name: "ReviewTime", Tag: tag.ReviewTime, Scope: ScopePlan},
	"operatorsname":     {Name: "OperatorsName", Tag: tag.OperatorsName, Scope: ScopePlan},
	"institutionname":   {Name: "InstitutionName", Tag: tag.InstitutionName, Scope: ScopePlan},
	"stationname":       {Name: "StationName", Tag: tag.StationName, Scope: ScopePlan},
	"studydescription":  {Name: "StudyDescription", Tag: tag.StudyDescription, Scope: ScopePlan},
	"seriesdescription": {Name: "SeriesDescription", Tag: tag.SeriesDescription, Scope: ScopePlan},
	"manufacturer":      {Name: "Manufacturer", Tag: tag.Manufacturer, Scope: ScopePlan},

	"treatmentmachinename":  {Name: "TreatmentMachineName", Tag: tag.TreatmentMachineName, Scope: ScopeBeam},
	"beamdescription":       {Name: "BeamDescription", Tag: tag.BeamDescription, Scope: ScopeBeam},
	"manufacturermodelname": {Name: "ManufacturerModelName", Tag: tag.ManufacturerModelName, Scope: ScopeBeam},
}

// GetTagByName looks a keyword up case-insensitively. Unknown names get the
// closest registered keyword as a suggestion when one is near enough.
func GetTagByName(name string) (TagInfo, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if info, ok := tagRegistry[key]; ok {
		return info, nil
	}
	if s := findClosestTagName(key); s != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, s)
	}
	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// RegisteredTags lists the registered keywords in alphabetical order.
func RegisteredTags() []TagInfo {
	out := make([]TagInfo, 0, len(tagRegistry))
	for _, info := range tagRegistry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// findClosestTagName returns the keyword at the smallest edit distance, or
// "" when nothing is within 5 edits. Ties resolve alphabetically.
func findClosestTagName(input string) string {
	const maxDistance = 5
	best, bestDist := "", maxDistance+1
	for _, info := range RegisteredTags() {
		if d := levenshteinDistance(input, strings.ToLower(info.Name)); d < bestDist {
			best, bestDist = info.Name, d
		}
	}
	return best
}

// levenshteinDistance counts single character insertions, deletions and
// substitutions, using two rolling rows.
func levenshteinDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
