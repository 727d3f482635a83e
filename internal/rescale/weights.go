package rescale

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadWeightsFile reads one layer factor per non-empty line.
func ReadWeightsFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w, err := ParseWeights(f)
	if err != nil {
		return nil, fmt.Errorf("weights file %s: %w", path, err)
	}
	return w, nil
}

// ParseWeights reads one float per non-empty line. A single trailing comma
// separated column is tolerated so spreadsheet exports work unchanged.
func ParseWeights(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, ","))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, sc.Text())
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no layer factors found")
	}
	return out, nil
}
