package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	DefinitionHash Hash
	SeriesHash     Hash
	ResultHash     Hash
)

// Constructors
func NewDefinitionHash(data []byte) DefinitionHash { return DefinitionHash(NewHash(data)) }
func NewSeriesHash(data []byte) SeriesHash         { return SeriesHash(NewHash(data)) }
func NewResultHash(data []byte) ResultHash         { return ResultHash(NewHash(data)) }

// String conversions
func (h DefinitionHash) String() string { return Hash(h).String() }
func (h SeriesHash) String() string     { return Hash(h).String() }
func (h ResultHash) String() string     { return Hash(h).String() }

// ComputeSeriesHash fingerprints a measurement series: independent values in
// order, each followed by its readings in sorted field order.
func ComputeSeriesHash(independent []float64, readings []map[string]float64) SeriesHash {
	var data strings.Builder
	for i, iv := range independent {
		data.WriteString(fmt.Sprintf("%.12g|", iv))
		if i < len(readings) {
			keys := make([]string, 0, len(readings[i]))
			for k := range readings[i] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				data.WriteString(key)
				data.WriteString(fmt.Sprintf("=%.12g;", readings[i][key]))
			}
		}
		data.WriteString("\n")
	}
	return NewSeriesHash([]byte(data.String()))
}
