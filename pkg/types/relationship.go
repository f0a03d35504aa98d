package types

import (
	"fmt"
	"time"
)

// RelationshipType classifies a directed edge between two memory entries.
// Closed set with exhaustive handling at write and read sites.
type RelationshipType string

const (
	RelSupports        RelationshipType = "supports"
	RelContradicts     RelationshipType = "contradicts"
	RelElaborates      RelationshipType = "elaborates"
	RelTemporalFollows RelationshipType = "temporal_follows"
	RelDuplicates      RelationshipType = "duplicates"
)

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelSupports, RelContradicts, RelElaborates, RelTemporalFollows, RelDuplicates:
		return true
	}
	return false
}

// ParseRelationshipType converts a raw string into a RelationshipType.
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown relationship type %q", s)
	}
	return t, nil
}

// MemoryRelationship is a directed, typed, scored edge between two memory
// entries. Detection is asymmetric (source to target); re-detection of the
// same ordered pair with the same type is idempotent at the storage layer.
type MemoryRelationship struct {
	ID             string           `json:"id"`
	SourceMemoryID string           `json:"source_memory_id"`
	TargetMemoryID string           `json:"target_memory_id"`
	Type           RelationshipType `json:"relationship_type"`

	// Strength measures how strong the relation is; Confidence measures how
	// certain the detection is. Both are in [0, 1].
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`

	// Context is a short free-text explanation of why the relationship was
	// detected (e.g. "fuzzy similarity 0.91").
	Context string `json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RelatedMemory annotates a memory discovered via graph traversal with the
// relationship that led to it and the hop depth at which it was found.
type RelatedMemory struct {
	Memory       *MemoryEntry       `json:"memory"`
	Relationship MemoryRelationship `json:"relationship"`
	Depth        int                `json:"depth"`
}
