package types

import (
	"fmt"
	"time"
)

// FactType classifies an atomic fact decomposed from a memory's content.
// Closed set; see MemoryCategory for the rationale.
type FactType string

const (
	FactPreference FactType = "preference"
	FactGoal       FactType = "goal"
	FactConstraint FactType = "constraint"
	FactEvent      FactType = "event"
	FactStatement  FactType = "statement"
)

// Valid reports whether f is a known fact type.
func (f FactType) Valid() bool {
	switch f {
	case FactPreference, FactGoal, FactConstraint, FactEvent, FactStatement:
		return true
	}
	return false
}

// ParseFactType converts a raw string into a FactType.
func ParseFactType(s string) (FactType, error) {
	f := FactType(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown fact type %q", s)
	}
	return f, nil
}

// AtomicFact is a single decomposed assertion belonging to one memory entry.
// Facts are created when a memory is processed and are not mutated afterward;
// they are invalidated implicitly when the owning memory is deactivated.
type AtomicFact struct {
	ID            string    `json:"id"`
	MemoryEntryID string    `json:"memory_entry_id"`
	FactType      FactType  `json:"fact_type"`
	Content       string    `json:"content"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}
