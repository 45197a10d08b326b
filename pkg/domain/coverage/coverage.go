// Package coverage aggregates a traceability matrix into coverage percentages.
package coverage

import (
	"errors"
	"fmt"
	"math"

	"github.com/felixgeelhaar/specsync/pkg/domain/trace"
)

// DefaultThreshold is the overall coverage required when none is given.
const DefaultThreshold = 80.0

// ErrInvalidThreshold indicates a threshold outside 0..100.
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// Metrics are coverage percentages in the range 0..100.
type Metrics struct {
	Overall      float64  `json:"overall_coverage"`
	Requirements float64  `json:"requirements_coverage"`
	Design       float64  `json:"design_coverage"`
	API          float64  `json:"api_coverage"`
	Tests        float64  `json:"test_coverage"`
	Threshold    float64  `json:"threshold"`
	Meets        bool     `json:"meets_threshold"`
	TotalRows    int      `json:"total_requirements"`
	Untested     []string `json:"untested_requirements"`
}

// ValidateThreshold checks a caller supplied threshold.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// Calculate computes per-category coverage over the matrix rows. Overall is
// the mean of the four categories so no single category dominates.
func Calculate(m trace.Matrix, threshold float64) (Metrics, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Metrics{}, err
	}
	out := Metrics{Threshold: threshold, TotalRows: len(m.Rows), Untested: m.Untested()}
	if len(m.Rows) == 0 {
		out.Meets = out.Overall >= threshold
		return out, nil
	}

	var impl, design, api, tests int
	for _, r := range m.Rows {
		if len(r.Implementation) > 0 {
			impl++
		}
		if len(r.Design) > 0 {
			design++
		}
		if len(r.API) > 0 {
			api++
		}
		if len(r.Tests) > 0 {
			tests++
		}
	}
	total := float64(len(m.Rows))
	out.Requirements = percent(impl, total)
	out.Design = percent(design, total)
	out.API = percent(api, total)
	out.Tests = percent(tests, total)
	out.Overall = round2((out.Requirements + out.Design + out.API + out.Tests) / 4)
	out.Meets = out.Overall >= threshold
	return out, nil
}

func percent(n int, total float64) float64 {
	return round2(float64(n) / total * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
