package plan

import "errors"

var (
	// ErrLayerCountMismatch is returned when a per-layer vector does not
	// match the number of physical energy layers of a field.
	ErrLayerCountMismatch = errors.New("layer count mismatch")

	// ErrZeroCumulativeWeight is returned when a field has no total weight
	// to derive its meterset per weight from.
	ErrZeroCumulativeWeight = errors.New("final cumulative meterset weight is zero")

	// ErrDegeneratePlan is returned when a plan has no spot with positive weight.
	ErrDegeneratePlan = errors.New("plan has no spot with positive weight")

	// ErrFieldCount is returned when a per-field list does not have one entry per field.
	ErrFieldCount = errors.New("value count does not match number of fields")
)
