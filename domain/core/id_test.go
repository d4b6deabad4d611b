package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	// Generate many IDs
	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseProtocolID tests protocol ID parsing
func TestParseProtocolID(t *testing.T) {
	tests := []struct {
		input    string
		expected ProtocolID
		hasError bool
	}{
		{"IAM-2104", ProtocolID("IAM-2104"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseProtocolID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestComputeSeriesHashDeterminism tests that series fingerprints are stable
// across reading-map iteration order.
func TestComputeSeriesHashDeterminism(t *testing.T) {
	independent := []float64{0, 10, 20}
	readings := []map[string]float64{
		{"pmax": 360.5, "irradiance": 1001.2},
		{"irradiance": 999.8, "pmax": 359.9},
		{"pmax": 358.2, "irradiance": 1000.4},
	}

	first := ComputeSeriesHash(independent, readings)
	for i := 0; i < 50; i++ {
		if got := ComputeSeriesHash(independent, readings); !Hash(got).Equals(Hash(first)) {
			t.Fatalf("Series hash not deterministic: %s vs %s", first, got)
		}
	}

	changed := []map[string]float64{
		{"pmax": 360.5, "irradiance": 1001.2},
		{"irradiance": 999.8, "pmax": 359.9},
		{"pmax": 358.3, "irradiance": 1000.4},
	}
	if got := ComputeSeriesHash(independent, changed); Hash(got).Equals(Hash(first)) {
		t.Error("Expected different hash after changing a reading")
	}
}
