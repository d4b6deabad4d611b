package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	ProtocolID ID
	RunID      ID
	SampleID   ID
	ResultID   ID
	MetricName ID
)

// String conversions for domain IDs
func (id ProtocolID) String() string { return ID(id).String() }
func (id RunID) String() string      { return ID(id).String() }
func (id SampleID) String() string   { return ID(id).String() }
func (id ResultID) String() string   { return ID(id).String() }
func (n MetricName) String() string  { return ID(n).String() }

// ParseProtocolID parses a string into ProtocolID
func ParseProtocolID(s string) (ProtocolID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("protocol ID cannot be empty")
	}
	return ProtocolID(s), nil
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseSampleID parses a string into SampleID
func ParseSampleID(s string) (SampleID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sample ID cannot be empty")
	}
	return SampleID(s), nil
}

// ParseMetricName parses a string into MetricName
func ParseMetricName(s string) (MetricName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("metric name cannot be empty")
	}
	return MetricName(s), nil
}
