// Package engine implements the memory processing core: similarity scoring,
// atomic fact extraction, relationship discovery, duplicate consolidation and
// the background processing pipeline that ties them together.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// minTokenLength filters out short stop-ish words before Jaccard scoring.
const minTokenLength = 2

// IsExactMatch reports whether two memory entries have identical content
// after whitespace and case normalization. Case/whitespace variants are an
// exact match, never merely high fuzzy similarity.
func IsExactMatch(a, b *types.MemoryEntry) bool {
	return NormalizeContent(a.Content) == NormalizeContent(b.Content)
}

// SameSemanticHash reports whether both entries carry a non-empty semantic
// hash and the hashes are equal.
func SameSemanticHash(a, b *types.MemoryEntry) bool {
	return a.SemanticHash != "" && a.SemanticHash == b.SemanticHash
}

// FuzzySimilarity computes the Jaccard similarity of the two entries' token
// sets: |intersection| / |union| over lowercase alphanumeric words longer
// than minTokenLength. Returns 0 when either token set is empty. Symmetric.
func FuzzySimilarity(a, b *types.MemoryEntry) float64 {
	return jaccard(TokenSet(a.Content), TokenSet(b.Content))
}

// NormalizeContent lowercases content and collapses runs of whitespace into
// single spaces.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// TokenSet tokenizes content into the set of lowercase alphanumeric words
// longer than minTokenLength.
func TokenSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(content) {
		set[tok] = true
	}
	return set
}

// tokenize splits content on non-alphanumeric runes and lowercases the parts,
// keeping only words longer than minTokenLength.
func tokenize(content string) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > minTokenLength {
			out = append(out, f)
		}
	}
	return out
}

// jaccard computes intersection over union, returning 0 when either set is empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SemanticHash computes a content fingerprint: the sha256 of the sorted token
// set. Two contents with the same significant words produce the same hash,
// enabling O(1) duplicate candidate lookup via the semantic_hash index.
func SemanticHash(content string) string {
	set := TokenSet(content)
	if len(set) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	sum := sha256.Sum256([]byte(strings.Join(tokens, " ")))
	return hex.EncodeToString(sum[:])
}
