package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// FactExtractor decomposes memory content into typed atomic facts using
// local heuristics only. It never makes a network call, which is why it can
// run inline on latency-sensitive paths; the heavier AI-based deep extraction
// used elsewhere in the broader system bypasses this type entirely.
type FactExtractor struct{}

// NewFactExtractor creates a fact extractor.
func NewFactExtractor() *FactExtractor {
	return &FactExtractor{}
}

// factCue maps a content cue phrase to a fact type and a base confidence.
// Longer, more specific cues are listed first within a type so that the
// strongest signal wins.
type factCue struct {
	phrase     string
	factType   types.FactType
	confidence float64
}

// cues are checked in order; the first match classifies the sentence.
// Constraint cues come first: "I can't eat peanuts" must classify as a
// constraint even though "eat" could read as an event.
var cues = []factCue{
	{"allergic", types.FactConstraint, 0.9},
	{"intolerant", types.FactConstraint, 0.9},
	{"cannot", types.FactConstraint, 0.8},
	{"can't", types.FactConstraint, 0.8},
	{"must not", types.FactConstraint, 0.8},
	{"should not", types.FactConstraint, 0.75},
	{"avoid", types.FactConstraint, 0.75},
	{"never eat", types.FactConstraint, 0.8},

	{"my goal", types.FactGoal, 0.9},
	{"i want to", types.FactGoal, 0.85},
	{"i plan to", types.FactGoal, 0.85},
	{"i aim to", types.FactGoal, 0.85},
	{"trying to", types.FactGoal, 0.7},
	{"i would like to", types.FactGoal, 0.75},

	{"i love", types.FactPreference, 0.9},
	{"i like", types.FactPreference, 0.85},
	{"i prefer", types.FactPreference, 0.9},
	{"i enjoy", types.FactPreference, 0.85},
	{"i hate", types.FactPreference, 0.85},
	{"i dislike", types.FactPreference, 0.85},
	{"favorite", types.FactPreference, 0.8},

	{"yesterday", types.FactEvent, 0.8},
	{"this morning", types.FactEvent, 0.8},
	{"last week", types.FactEvent, 0.8},
	{"last night", types.FactEvent, 0.8},
	{"today i", types.FactEvent, 0.75},
	{"i went", types.FactEvent, 0.75},
	{"i had", types.FactEvent, 0.7},
	{"i did", types.FactEvent, 0.7},
	{"i finished", types.FactEvent, 0.75},
	{"i completed", types.FactEvent, 0.75},
}

// defaultConfidence is assigned to sentences with no cue match; they fall
// back to plain statements.
const defaultConfidence = 0.5

// Extract decomposes content into typed atomic facts. It returns an empty
// slice (never an error) for empty or unparseable content.
func (x *FactExtractor) Extract(memoryID, content string) []types.AtomicFact {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	now := time.Now()
	facts := make([]types.AtomicFact, 0, len(sentences))
	for _, sentence := range sentences {
		factType, confidence := classifySentence(sentence)
		facts = append(facts, types.AtomicFact{
			ID:            uuid.NewString(),
			MemoryEntryID: memoryID,
			FactType:      factType,
			Content:       sentence,
			Confidence:    confidence,
			CreatedAt:     now,
		})
	}
	return facts
}

// classifySentence assigns a fact type and confidence based on cue phrases.
// Very short sentences get a confidence penalty since they carry less signal.
func classifySentence(sentence string) (types.FactType, float64) {
	lower := strings.ToLower(sentence)

	factType := types.FactStatement
	confidence := defaultConfidence
	for _, cue := range cues {
		if strings.Contains(lower, cue.phrase) {
			factType = cue.factType
			confidence = cue.confidence
			break
		}
	}

	if len(tokenize(sentence)) < 3 {
		confidence *= 0.8
	}
	return factType, confidence
}

// splitSentences breaks content into trimmed sentences on terminal
// punctuation, dropping fragments with no significant tokens.
func splitSentences(content string) []string {
	parts := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})

	var out []string
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" || len(tokenize(s)) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
