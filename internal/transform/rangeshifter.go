package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrsinham/dicomfix/internal/plan"
)

// ErrUnknownRangeShifter is returned for device identifiers not in the
// range shifter table.
var ErrUnknownRangeShifter = errors.New("unknown range shifter")

// RangeShifterID names an installable range shifter. The empty ID means none.
type RangeShifterID string

const (
	RangeShifterNone RangeShifterID = ""
	RangeShifter2CM  RangeShifterID = "RS_2CM"
	RangeShifter5CM  RangeShifterID = "RS_5CM"
)

// Water equivalent thickness per device, mm.
var rangeShifterWET = map[RangeShifterID]float64{
	RangeShifter2CM: 57.0,
	RangeShifter5CM: 22.8,
}

// Fixed settings of an installed range shifter.
const (
	RangeShifterIsocenterDistance = 98.0 // mm
	RangeShifterSettingIn         = "IN"
	RangeShifterTypeBinary        = "BINARY"
)

// ParseRangeShifterID parses a device identifier. "", "none" and "off"
// select no range shifter.
func ParseRangeShifterID(s string) (RangeShifterID, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE", "OFF":
		return RangeShifterNone, nil
	case string(RangeShifter2CM):
		return RangeShifter2CM, nil
	case string(RangeShifter5CM):
		return RangeShifter5CM, nil
	default:
		return RangeShifterNone, fmt.Errorf("%w %q (valid: %s, %s or none)", ErrUnknownRangeShifter, s, RangeShifter2CM, RangeShifter5CM)
	}
}

// String returns the identifier, or "none".
func (id RangeShifterID) String() string {
	if id == RangeShifterNone {
		return "none"
	}
	return string(id)
}

// SetRangeShifter installs id on every field, or removes any installed
// device when id is RangeShifterNone.
func SetRangeShifter(p *plan.Plan, id RangeShifterID) error {
	if id == RangeShifterNone {
		for _, f := range p.Fields {
			f.RangeShifter = nil
		}
		return nil
	}
	wet, ok := rangeShifterWET[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownRangeShifter, string(id))
	}
	for _, f := range p.Fields {
		f.RangeShifter = &plan.RangeShifter{
			Number:                   1,
			ID:                       string(id),
			Type:                     RangeShifterTypeBinary,
			Setting:                  RangeShifterSettingIn,
			IsocenterDistance:        RangeShifterIsocenterDistance,
			WaterEquivalentThickness: wet,
		}
	}
	return nil
}
