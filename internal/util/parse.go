package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFloatList parses a comma separated list of numbers, e.g. "0,90,270".
func ParseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty list")
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid number %q", i+1, strings.TrimSpace(p))
		}
		out = append(out, v)
	}
	return out, nil
}

// TablePosition is a couch position in mm.
type TablePosition struct {
	Vertical     float64
	Longitudinal float64
	Lateral      float64
}

// ParseTablePosition parses "vertical,longitudinal,lateral" given in cm and
// returns the position in mm.
func ParseTablePosition(s string) (TablePosition, error) {
	v, err := ParseFloatList(s)
	if err != nil {
		return TablePosition{}, fmt.Errorf("table position: %w", err)
	}
	if len(v) != 3 {
		return TablePosition{}, fmt.Errorf("table position needs 3 values (vertical,longitudinal,lateral), got %d", len(v))
	}
	return TablePosition{Vertical: v[0] * 10, Longitudinal: v[1] * 10, Lateral: v[2] * 10}, nil
}

// ParseTagAssignment splits "Name=Value" and resolves Name in the registry.
func ParseTagAssignment(s string) (TagInfo, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return TagInfo{}, "", fmt.Errorf("invalid tag assignment %q, expected Name=Value", s)
	}
	info, err := GetTagByName(name)
	if err != nil {
		return TagInfo{}, "", err
	}
	return info, value, nil
}
