package fitting

import (
	"testing"

	"pvqc/domain/protocol"
)

func defaultStabilization() protocol.StabilizationSpec {
	return protocol.StabilizationSpec{
		Window:     protocol.DefaultStabilizationWindow,
		EpsilonPct: protocol.DefaultStabilizationEpsilonPct,
	}
}

// settlingSeries drifts down for 96 points then holds a plateau at 97 with a
// +/-0.28 alternation (about 0.3% of the level) for the final 144 points,
// three full windows of width 48
func settlingSeries() (values, hours []float64) {
	const n = 240
	values = make([]float64, n)
	hours = make([]float64, n)
	for i := 0; i < n; i++ {
		hours[i] = float64(i)
		if i < 96 {
			values[i] = 146 - 0.5*float64(i)
			continue
		}
		if (i-96)%2 == 0 {
			values[i] = 97 + 0.28
		} else {
			values[i] = 97 - 0.28
		}
	}
	return values, hours
}

func TestDetectStabilizationFindsPlateau(t *testing.T) {
	values, hours := settlingSeries()

	result := DetectStabilization(values, hours, defaultStabilization())
	if !result.Stabilized {
		t.Fatal("Expected series to stabilize")
	}
	if result.AtIndex == nil || *result.AtIndex != 96 {
		t.Errorf("Expected stabilization at index 96, got %v", result.AtIndex)
	}
	if result.AtHours == nil || *result.AtHours != 96 {
		t.Errorf("Expected stabilization at 96 hours, got %v", result.AtHours)
	}
}

func TestDetectStabilizationDriftingSeries(t *testing.T) {
	// Keeps losing one percent of its level per window to the very end
	const n = 240
	values := make([]float64, n)
	hours := make([]float64, n)
	level := 100.0
	for i := 0; i < n; i++ {
		hours[i] = float64(i)
		values[i] = level
		level -= level * 0.01 / 48
	}

	result := DetectStabilization(values, hours, defaultStabilization())
	if result.Stabilized {
		t.Errorf("Expected drifting series not observed, got stabilized at %v", result.AtIndex)
	}
	if result.AtIndex != nil || result.AtHours != nil {
		t.Error("Not-observed result must not carry a position")
	}
}

func TestDetectStabilizationSeriesShorterThanWindow(t *testing.T) {
	values := []float64{100, 100, 100}
	hours := []float64{0, 1, 2}

	result := DetectStabilization(values, hours, defaultStabilization())
	if result.Stabilized {
		t.Error("A series shorter than the window cannot stabilize")
	}
	if result.Window != protocol.DefaultStabilizationWindow {
		t.Errorf("Result must echo the window, got %d", result.Window)
	}
}

func TestDetectStabilizationImmediatePlateau(t *testing.T) {
	const n = 60
	values := make([]float64, n)
	hours := make([]float64, n)
	for i := range values {
		values[i] = 100
		hours[i] = float64(i) * 2
	}

	result := DetectStabilization(values, hours, defaultStabilization())
	if !result.Stabilized {
		t.Fatal("Constant series must stabilize at its first window")
	}
	if *result.AtIndex != 0 {
		t.Errorf("Expected index 0, got %d", *result.AtIndex)
	}
	if *result.AtHours != 0 {
		t.Errorf("Expected 0 hours, got %g", *result.AtHours)
	}
}

func TestDetectStabilizationPlateauMustOutlastWindow(t *testing.T) {
	// Plateau spans exactly one window at the tail; nothing beyond it
	// confirms the level held, so this stays not observed
	const n = 144
	values := make([]float64, n)
	hours := make([]float64, n)
	for i := 0; i < n; i++ {
		hours[i] = float64(i)
		if i < 96 {
			values[i] = 146 - 0.5*float64(i)
		} else {
			values[i] = 97
		}
	}

	result := DetectStabilization(values, hours, defaultStabilization())
	if result.Stabilized {
		t.Errorf("Expected not observed for a tail-only plateau, got index %v", result.AtIndex)
	}
}

func TestDetectStabilizationCustomWindow(t *testing.T) {
	// Settles only for the last 12 points; a 10-wide window sees it, the
	// default 48 cannot
	values := make([]float64, 24)
	hours := make([]float64, 24)
	for i := range values {
		hours[i] = float64(i)
		if i < 12 {
			values[i] = 110 - float64(i)
		} else {
			values[i] = 98
		}
	}

	narrow := DetectStabilization(values, hours, protocol.StabilizationSpec{Window: 10, EpsilonPct: 0.5})
	if !narrow.Stabilized || *narrow.AtIndex != 12 {
		t.Errorf("Expected narrow window to stabilize at 12, got %+v", narrow)
	}

	wide := DetectStabilization(values, hours, defaultStabilization())
	if wide.Stabilized {
		t.Error("Window wider than the series must report not observed")
	}
}
