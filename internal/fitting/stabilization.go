package fitting

import (
	"math"

	"pvqc/domain/analysis"
	"pvqc/domain/protocol"
)

// DetectStabilization scans a degradation sequence for the plateau that ends
// a light-soak procedure. The window of spec.Window points starting at index
// s fixes a reference level (its mean); the series is stabilized at the first
// s where every value from s through the end of the series stays within
// spec.EpsilonPct percent of that reference. The plateau must outlast the
// window itself: a window touching the final point cannot confirm that the
// level held, so such starts are not considered. A series still drifting
// keeps escaping its reference level and reports not observed, which is a
// value rather than an error.
//
// values and hours run in parallel over the sorted usable points; values are
// expected normalized (percent of initial), and the tolerance is relative to
// the window mean so raw-power input degrades gracefully.
func DetectStabilization(values, hours []float64, spec protocol.StabilizationSpec) analysis.StabilizationResult {
	result := analysis.StabilizationResult{
		Window:     spec.Window,
		EpsilonPct: spec.EpsilonPct,
	}

	n := len(values)
	window := spec.Window
	if window < 2 || n <= window || len(hours) != n {
		return result
	}

	for s := 0; s+window < n; s++ {
		if holdsLevelFrom(values, s, window, spec.EpsilonPct) {
			result.Stabilized = true
			start := s
			result.AtIndex = &start
			at := hours[s]
			result.AtHours = &at
			return result
		}
	}
	return result
}

// holdsLevelFrom checks whether every value from start onward keeps the
// level set by the window beginning there
func holdsLevelFrom(values []float64, start, window int, epsilonPct float64) bool {
	var mean float64
	for _, v := range values[start : start+window] {
		mean += v
	}
	mean /= float64(window)
	if mean == 0 {
		return false
	}

	limit := math.Abs(mean) * epsilonPct / 100
	for _, v := range values[start:] {
		if math.Abs(v-mean) >= limit {
			return false
		}
	}
	return true
}
