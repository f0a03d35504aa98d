package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// RelationshipEngine discovers typed relationships between a memory and a
// candidate pool using the similarity primitives plus lightweight heuristics:
// temporal proximity, shared keywords/labels, and negation-cue asymmetry for
// contradictions. All paths are local and deterministic.
type RelationshipEngine struct {
	cfg config.EngineConfig

	// tokenCache memoizes stemmed token sets across discovery passes.
	// Keyed by memory ID + update count so stale content self-invalidates.
	tokenCache *lru.Cache[string, map[string]bool]
}

// NewRelationshipEngine creates a relationship engine with the given tuning.
func NewRelationshipEngine(cfg config.EngineConfig) *RelationshipEngine {
	size := cfg.TokenCacheSize
	if size < 1 {
		size = 512
	}
	cache, _ := lru.New[string, map[string]bool](size)
	return &RelationshipEngine{cfg: cfg, tokenCache: cache}
}

// negationCues signal a constraint or prohibition. A contradiction requires
// the cue to appear on exactly one side of a pair that shares a subject.
var negationCues = []string{
	"allergic", "intolerant", "never", "cannot", "can't", "must not",
	"should not", "avoid", "don't", "do not", "quit", "stopped",
}

// DiscoverRelationships compares the memory against each candidate and
// returns at most one typed relationship per candidate, chosen by first match
// in precedence order: duplicates, contradicts, elaborates, temporal_follows,
// supports. An empty pool yields an empty result, not an error.
func (e *RelationshipEngine) DiscoverRelationships(mem *types.MemoryEntry, pool []*types.MemoryEntry) []types.MemoryRelationship {
	if mem == nil || len(pool) == 0 {
		return nil
	}

	now := time.Now()
	var out []types.MemoryRelationship
	for _, cand := range pool {
		if cand == nil || cand.ID == mem.ID || !cand.IsActive {
			continue
		}
		if rel, ok := e.classifyPair(mem, cand, now); ok {
			out = append(out, rel)
		}
	}
	return out
}

// classifyPair runs the heuristic cascade for a single ordered pair.
func (e *RelationshipEngine) classifyPair(mem, cand *types.MemoryEntry, now time.Time) (types.MemoryRelationship, bool) {
	sim := FuzzySimilarity(mem, cand)

	switch {
	case IsExactMatch(mem, cand):
		return e.newRelationship(mem, cand, types.RelDuplicates, 1.0, 0.95,
			"exact content match", now), true

	case SameSemanticHash(mem, cand):
		return e.newRelationship(mem, cand, types.RelDuplicates, 1.0, 0.9,
			"equal semantic hash", now), true

	case sim >= e.cfg.DuplicateThreshold:
		return e.newRelationship(mem, cand, types.RelDuplicates, sim, sim,
			fmt.Sprintf("fuzzy similarity %.2f", sim), now), true
	}

	if strength, ok := e.detectContradiction(mem, cand); ok {
		return e.newRelationship(mem, cand, types.RelContradicts, strength, 0.6,
			"negation cue on one side with shared subject", now), true
	}

	if sim >= e.cfg.ElaborationFloor {
		return e.newRelationship(mem, cand, types.RelElaborates, sim, 0.7,
			fmt.Sprintf("partial content overlap %.2f", sim), now), true
	}

	shared := sharedTerms(mem, cand)
	if len(shared) >= e.cfg.SharedKeywordFloor {
		gap := mem.CreatedAt.Sub(cand.CreatedAt)
		if gap > 0 && gap <= e.cfg.TemporalWindow {
			strength := 1.0 - gap.Seconds()/e.cfg.TemporalWindow.Seconds()
			return e.newRelationship(mem, cand, types.RelTemporalFollows, strength, 0.65,
				fmt.Sprintf("shared terms %s within %s", strings.Join(shared, ","), e.cfg.TemporalWindow), now), true
		}
		if mem.Category == cand.Category {
			strength := float64(len(shared)) / float64(len(shared)+2)
			return e.newRelationship(mem, cand, types.RelSupports, strength, 0.6,
				fmt.Sprintf("same category, shared terms %s", strings.Join(shared, ",")), now), true
		}
	}

	return types.MemoryRelationship{}, false
}

// detectContradiction reports whether mem and cand contradict each other:
// the pair must share a subject (stemmed-token containment above the
// configured floor) while a negation cue appears on exactly one side.
// Returns the relationship strength when detected.
func (e *RelationshipEngine) detectContradiction(mem, cand *types.MemoryEntry) (float64, bool) {
	memNeg := hasNegationCue(mem.Content)
	candNeg := hasNegationCue(cand.Content)
	if memNeg == candNeg {
		return 0, false
	}

	a := e.stemmedTokens(mem)
	b := e.stemmedTokens(cand)
	overlap := containment(a, b)
	if overlap < e.cfg.ContradictionFloor {
		return 0, false
	}

	return 0.5 + 0.5*overlap, true
}

// RelatedMemories returns memories from the pool reachable within maxDepth
// relationship hops of mem, each annotated with the relationship used and the
// hop depth. A memory already included at a shallower depth is never
// revisited, so cycles terminate.
func (e *RelationshipEngine) RelatedMemories(mem *types.MemoryEntry, pool []*types.MemoryEntry, maxDepth int) []types.RelatedMemory {
	if mem == nil || len(pool) == 0 || maxDepth < 1 {
		return nil
	}

	byID := make(map[string]*types.MemoryEntry, len(pool))
	for _, p := range pool {
		if p != nil && p.IsActive {
			byID[p.ID] = p
		}
	}

	type frontier struct {
		mem   *types.MemoryEntry
		depth int
	}

	visited := map[string]bool{mem.ID: true}
	queue := []frontier{{mem, 0}}
	var out []types.RelatedMemory

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}

		for _, rel := range e.DiscoverRelationships(cur.mem, poolExcept(byID, visited)) {
			target := byID[rel.TargetMemoryID]
			if target == nil || visited[target.ID] {
				continue
			}
			visited[target.ID] = true
			out = append(out, types.RelatedMemory{
				Memory:       target,
				Relationship: rel,
				Depth:        cur.depth + 1,
			})
			queue = append(queue, frontier{target, cur.depth + 1})
		}
	}
	return out
}

// poolExcept returns the pool members not yet visited, in stable ID order
// (map iteration would make traversal nondeterministic).
func poolExcept(byID map[string]*types.MemoryEntry, visited map[string]bool) []*types.MemoryEntry {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		if !visited[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*types.MemoryEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

func (e *RelationshipEngine) newRelationship(src, dst *types.MemoryEntry, relType types.RelationshipType, strength, confidence float64, context string, now time.Time) types.MemoryRelationship {
	return types.MemoryRelationship{
		ID:             uuid.NewString(),
		SourceMemoryID: src.ID,
		TargetMemoryID: dst.ID,
		Type:           relType,
		Strength:       clamp01(strength),
		Confidence:     clamp01(confidence),
		Context:        context,
		CreatedAt:      now,
	}
}

// stemmedTokens returns the entry's stemmed significant tokens, memoized in
// the LRU cache.
func (e *RelationshipEngine) stemmedTokens(mem *types.MemoryEntry) map[string]bool {
	key := fmt.Sprintf("%s@%d", mem.ID, mem.UpdateCount)
	if cached, ok := e.tokenCache.Get(key); ok {
		return cached
	}

	set := make(map[string]bool)
	for tok := range TokenSet(mem.Content) {
		set[stem(tok)] = true
	}
	for _, kw := range mem.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if len(k) > minTokenLength {
			set[stem(k)] = true
		}
	}
	e.tokenCache.Add(key, set)
	return set
}

// sharedTerms returns the sorted stemmed tokens (content words, keywords and
// labels) the two entries have in common.
func sharedTerms(a, b *types.MemoryEntry) []string {
	as := termSet(a)
	bs := termSet(b)

	var shared []string
	for t := range as {
		if bs[t] {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

// termSet unions content tokens, keywords and labels, all stemmed.
func termSet(m *types.MemoryEntry) map[string]bool {
	set := make(map[string]bool)
	for tok := range TokenSet(m.Content) {
		set[stem(tok)] = true
	}
	for _, kw := range m.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if len(k) > minTokenLength {
			set[stem(k)] = true
		}
	}
	for _, l := range m.Labels {
		k := strings.ToLower(strings.TrimSpace(l))
		if len(k) > minTokenLength {
			set[stem(k)] = true
		}
	}
	return set
}

// hasNegationCue reports whether content carries any negation/constraint cue.
func hasNegationCue(content string) bool {
	lower := strings.ToLower(content)
	for _, cue := range negationCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// containment computes intersection size over min set size: how much of the smaller set
// appears in the larger one. Unlike Jaccard it does not punish length
// asymmetry, which matters when a short constraint is contradicted by a long
// narrative sentence.
func containment(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(intersection) / float64(smaller)
}

// stem applies a naive plural/suffix strip so that "peanuts" matches
// "peanut" and "running" matches "run" in the overlap heuristics. The
// similarity engine's Jaccard scoring is intentionally left unstemmed.
func stem(tok string) string {
	switch {
	case strings.HasSuffix(tok, "ies") && len(tok) > 4:
		return tok[:len(tok)-3] + "y"
	case strings.HasSuffix(tok, "ing") && len(tok) > 5:
		base := tok[:len(tok)-3]
		// drop doubled final consonant: "running" -> "run"
		if len(base) > 2 && base[len(base)-1] == base[len(base)-2] {
			base = base[:len(base)-1]
		}
		return base
	case strings.HasSuffix(tok, "es") && len(tok) > 4:
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 3:
		return tok[:len(tok)-1]
	}
	return tok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
