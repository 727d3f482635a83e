package util

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatCount renders an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatParticles renders a particle count with an SI prefix, e.g. "1.23 G".
func FormatParticles(v float64) string {
	return strings.TrimSpace(humanize.SIWithDigits(v, 2, ""))
}

// FormatBytes renders a file size, e.g. "42 kB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
