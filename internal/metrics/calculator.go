package metrics

import (
	"math"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/domain/run"

	"github.com/montanaflynn/stats"
)

// Canonical reading names the calculator understands. Protocol definitions
// declare these in required_fields when the corresponding metrics apply.
const (
	ReadingVmp       = "vmp"        // voltage at maximum power, V
	ReadingImp       = "imp"        // current at maximum power, A
	ReadingVoc       = "voc"        // open-circuit voltage, V
	ReadingIsc       = "isc"        // short-circuit current, A
	ReadingPmax      = "pmax"       // maximum power, W
	ReadingFrontPmax = "front_pmax" // front-side maximum power, W
	ReadingRearPmax  = "rear_pmax"  // rear-side maximum power, W
)

// ============================================================================
// PURE METRIC FUNCTIONS
// ============================================================================

// FillFactor computes (vmp*imp)/(voc*isc). A zero voc*isc product marks the
// metric unavailable instead of dividing by zero.
func FillFactor(vmp, imp, voc, isc float64) analysis.MetricValue {
	denom := voc * isc
	if denom == 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	return analysis.Available((vmp * imp) / denom)
}

// DegradationPct computes (final-initial)/initial*100, negative for power loss
func DegradationPct(initial, final float64) analysis.MetricValue {
	if initial == 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	return analysis.Available((final - initial) / initial * 100)
}

// BifacialityFactor computes rearPmax/frontPmax
func BifacialityFactor(rearPmax, frontPmax float64) analysis.MetricValue {
	if frontPmax == 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	return analysis.Available(rearPmax / frontPmax)
}

// NormalizedPower computes current/initial*100
func NormalizedPower(current, initial float64) analysis.MetricValue {
	if initial == 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	return analysis.Available(current / initial * 100)
}

// DegradationRate computes pct/elapsedHours for a positive elapsed time
func DegradationRate(pct, elapsedHours float64) analysis.MetricValue {
	if elapsedHours <= 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	return analysis.Available(pct / elapsedHours)
}

// StabilizationHours converts a stabilization scan into the metric QC
// criteria address. A series that never stabilized stays distinguishable
// from one that was never scanned.
func StabilizationHours(stab *analysis.StabilizationResult) analysis.MetricValue {
	if stab == nil {
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	if !stab.Stabilized || stab.AtHours == nil {
		return analysis.NotAvailable(analysis.UnavailableNotObserved)
	}
	return analysis.Available(*stab.AtHours)
}

// ============================================================================
// SERIES-LEVEL DERIVATION
// ============================================================================

// Calculator derives the per-category metric set from a validated series.
// It is pure: no I/O, no clock, no mutation of its inputs.
type Calculator struct{}

// NewCalculator creates a calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Derive computes every metric in the category's catalog from the usable
// series. Metrics that cannot be computed appear with an explicit
// unavailability reason. stabilization_hours is merged later from the fit
// stage and defect_severity_score comes from the scoring collaborator, so
// Derive emits the former never and the latter only when a score is supplied
// or a criterion demands one.
func (c *Calculator) Derive(series run.MeasurementSeries, def *protocol.Definition, score *float64) analysis.Metrics {
	out := make(analysis.Metrics)

	for _, name := range protocol.CategoryMetrics(def.Category) {
		switch name {
		case protocol.MetricFillFactor:
			out[name] = c.referenceFillFactor(series)
		case protocol.MetricFillFactorMean:
			out[name] = c.meanFillFactor(series)
		case protocol.MetricDegradationPct:
			out[name] = c.degradationPct(series)
		case protocol.MetricDegradationRate:
			out[name] = c.degradationRate(series)
		case protocol.MetricNormalizedFinal:
			out[name] = c.normalizedFinal(series)
		case protocol.MetricNormalizedMin:
			out[name] = c.normalizedMin(series)
		case protocol.MetricBifaciality:
			out[name] = c.bifaciality(series)
		case protocol.MetricStabilizationHrs, protocol.MetricDefectSeverity:
			// handled below / by the caller
		}
	}

	if score != nil {
		out[protocol.MetricDefectSeverity] = analysis.Available(*score)
	} else if criteriaTarget(def, protocol.MetricDefectSeverity) {
		out[protocol.MetricDefectSeverity] = analysis.NotAvailable(analysis.UnavailableMissingInput)
	}

	return out
}

// referenceFillFactor evaluates the fill factor at the first point carrying a
// complete IV characterization, the series' reference conditions.
func (c *Calculator) referenceFillFactor(series run.MeasurementSeries) analysis.MetricValue {
	for _, p := range series.Points {
		vmp, imp, voc, isc, ok := ivReadings(p)
		if !ok {
			continue
		}
		return FillFactor(vmp, imp, voc, isc)
	}
	return analysis.NotAvailable(analysis.UnavailableMissingInput)
}

// meanFillFactor averages the per-point fill factors over every point with a
// complete IV characterization
func (c *Calculator) meanFillFactor(series run.MeasurementSeries) analysis.MetricValue {
	factors := make([]float64, 0, series.Len())
	sawComplete := false
	for _, p := range series.Points {
		vmp, imp, voc, isc, ok := ivReadings(p)
		if !ok {
			continue
		}
		sawComplete = true
		if ff := FillFactor(vmp, imp, voc, isc); ff.IsAvailable() {
			factors = append(factors, *ff.Value)
		}
	}
	if len(factors) == 0 {
		if sawComplete {
			return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
		}
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	mean, _ := stats.Mean(factors)
	return analysis.Available(mean)
}

func (c *Calculator) degradationPct(series run.MeasurementSeries) analysis.MetricValue {
	first, last, ok := endpointPower(series)
	if !ok {
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	return DegradationPct(first.power, last.power)
}

func (c *Calculator) degradationRate(series run.MeasurementSeries) analysis.MetricValue {
	first, last, ok := endpointPower(series)
	if !ok {
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	pct := DegradationPct(first.power, last.power)
	if !pct.IsAvailable() {
		return pct
	}
	return DegradationRate(*pct.Value, last.hours-first.hours)
}

func (c *Calculator) normalizedFinal(series run.MeasurementSeries) analysis.MetricValue {
	first, last, ok := endpointPower(series)
	if !ok {
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	return NormalizedPower(last.power, first.power)
}

// normalizedMin finds the lowest normalized power seen anywhere in the
// series, the worst point of a degradation-recovery curve
func (c *Calculator) normalizedMin(series run.MeasurementSeries) analysis.MetricValue {
	powers := series.ReadingValues(ReadingPmax)
	if len(powers) < 2 {
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	initial := powers[0]
	if initial == 0 {
		return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
	}
	normalized := make([]float64, len(powers))
	for i, p := range powers {
		normalized[i] = p / initial * 100
	}
	min, _ := stats.Min(normalized)
	return analysis.Available(min)
}

// bifaciality averages the per-point rear/front power ratios across every
// point measured on both sides
func (c *Calculator) bifaciality(series run.MeasurementSeries) analysis.MetricValue {
	ratios := make([]float64, 0, series.Len())
	sawPair := false
	for _, p := range series.Points {
		front, okF := p.Readings[ReadingFrontPmax]
		rear, okR := p.Readings[ReadingRearPmax]
		if !okF || !okR {
			continue
		}
		sawPair = true
		if bf := BifacialityFactor(rear, front); bf.IsAvailable() {
			ratios = append(ratios, *bf.Value)
		}
	}
	if len(ratios) == 0 {
		if sawPair {
			return analysis.NotAvailable(analysis.UnavailableDivisionByZero)
		}
		return analysis.NotAvailable(analysis.UnavailableMissingInput)
	}
	mean, _ := stats.Mean(ratios)
	return analysis.Available(mean)
}

// ============================================================================
// HELPERS
// ============================================================================

func ivReadings(p run.MeasurementPoint) (vmp, imp, voc, isc float64, ok bool) {
	vmp, okVmp := p.Readings[ReadingVmp]
	imp, okImp := p.Readings[ReadingImp]
	voc, okVoc := p.Readings[ReadingVoc]
	isc, okIsc := p.Readings[ReadingIsc]
	return vmp, imp, voc, isc, okVmp && okImp && okVoc && okIsc
}

type powerSample struct {
	hours float64
	power float64
}

// endpointPower returns the first and last points carrying a pmax reading.
// Two distinct samples are the minimum for any degradation arithmetic.
func endpointPower(series run.MeasurementSeries) (first, last powerSample, ok bool) {
	found := false
	for _, p := range series.Points {
		power, has := p.Readings[ReadingPmax]
		if !has || math.IsNaN(power) {
			continue
		}
		sample := powerSample{hours: p.Independent, power: power}
		if !found {
			first = sample
			found = true
		}
		last = sample
	}
	if !found || first.hours == last.hours {
		return powerSample{}, powerSample{}, false
	}
	return first, last, true
}

func criteriaTarget(def *protocol.Definition, name core.MetricName) bool {
	for _, c := range def.Criteria {
		if c.Target == name.String() {
			return true
		}
	}
	return false
}
