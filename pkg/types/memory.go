// Package types defines the shared domain model for the memory core:
// memory entries, atomic facts, relationships, background tasks and clusters.
package types

import (
	"fmt"
	"time"
)

// MemoryCategory classifies a memory entry. The set is closed: storage and
// engine code switch exhaustively over these values so a new category cannot
// be silently dropped.
type MemoryCategory string

const (
	CategoryPreference MemoryCategory = "preference"
	CategoryGoal       MemoryCategory = "goal"
	CategoryConstraint MemoryCategory = "constraint"
	CategoryFact       MemoryCategory = "fact"
	CategoryEvent      MemoryCategory = "event"
)

// AllCategories lists every valid memory category.
func AllCategories() []MemoryCategory {
	return []MemoryCategory{
		CategoryPreference,
		CategoryGoal,
		CategoryConstraint,
		CategoryFact,
		CategoryEvent,
	}
}

// Valid reports whether c is a known category.
func (c MemoryCategory) Valid() bool {
	switch c {
	case CategoryPreference, CategoryGoal, CategoryConstraint, CategoryFact, CategoryEvent:
		return true
	}
	return false
}

// ParseCategory converts a raw string into a MemoryCategory.
// Unknown values return an error rather than passing through.
func ParseCategory(s string) (MemoryCategory, error) {
	c := MemoryCategory(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown memory category %q", s)
	}
	return c, nil
}

// MemoryEntry is a unit of durable knowledge extracted from conversation.
// Entries are never hard-deleted: consolidation deactivates duplicates and
// folds their informational content into the surviving primary.
type MemoryEntry struct {
	ID              string         `json:"id"`
	UserID          int            `json:"user_id"`
	Content         string         `json:"content"`
	Category        MemoryCategory `json:"category"`
	ImportanceScore float64        `json:"importance_score"`
	AccessCount     int            `json:"access_count"`
	UpdateCount     int            `json:"update_count"`

	// SemanticHash is an optional precomputed content fingerprint used for
	// O(1) duplicate candidate lookup. Empty when not computed.
	SemanticHash string `json:"semantic_hash,omitempty"`

	// Labels and Keywords are order-irrelevant sets, deduplicated on merge.
	Labels   []string `json:"labels,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	// IsActive is false for logically deleted entries. Inactive entries are
	// excluded from consolidation, relationship discovery and retrieval.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLabel reports whether the entry carries the given label.
func (m *MemoryEntry) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// MergeFrom folds the informational content of dup into m per the
// consolidation rules: union labels and keywords, keep the higher importance,
// sum access counts, bump the update counter.
// It does not touch dup; deactivation is the caller's responsibility.
func (m *MemoryEntry) MergeFrom(dup *MemoryEntry, now time.Time) {
	m.Labels = unionStrings(m.Labels, dup.Labels)
	m.Keywords = unionStrings(m.Keywords, dup.Keywords)
	if dup.ImportanceScore > m.ImportanceScore {
		m.ImportanceScore = dup.ImportanceScore
	}
	m.AccessCount += dup.AccessCount
	m.UpdateCount++
	m.UpdatedAt = now
}

// unionStrings returns the set union of a and b, preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
