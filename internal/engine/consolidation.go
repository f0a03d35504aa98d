package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// GroupReason records which signal classified a duplicate group.
type GroupReason string

const (
	ReasonExactContent   GroupReason = "exact_content"
	ReasonSemanticHash   GroupReason = "semantic_hash"
	ReasonHighSimilarity GroupReason = "high_similarity"
)

// DuplicateGroup describes one detected group: the surviving primary, the
// merged-and-deactivated duplicates, and the signal that formed the group.
type DuplicateGroup struct {
	PrimaryID    string      `json:"primary_id"`
	DuplicateIDs []string    `json:"duplicate_ids"`
	Reason       GroupReason `json:"reason"`

	// Similarity is the pairwise score that formed the group: 1.0 for exact
	// and hash matches, the Jaccard score for high-similarity groups.
	Similarity float64 `json:"similarity"`
}

// ConsolidationOptions controls a consolidation run.
type ConsolidationOptions struct {
	// DryRun performs identical detection and reporting without writing.
	DryRun bool

	// UserID scopes the run to one user. Zero processes all users.
	// The scope is consistent within a single run.
	UserID int
}

// ConsolidationReport summarises a consolidation run.
type ConsolidationReport struct {
	TotalMemories       int              `json:"total_memories"`
	DuplicateGroups     int              `json:"duplicate_groups"`
	MemoriesDeactivated int              `json:"memories_deactivated"`
	MemoriesUpdated     int              `json:"memories_updated"`
	ProcessingTimeMs    int64            `json:"processing_time_ms"`
	DryRun              bool             `json:"dry_run"`
	Groups              []DuplicateGroup `json:"groups,omitempty"`

	// GroupErrors lists per-group failures. A failed group is skipped; the
	// batch continues, so inspect this to detect partial failure.
	GroupErrors []string `json:"group_errors,omitempty"`
}

// Consolidator is the duplicate consolidation service: a batch pass that
// reduces redundant memory storage while preserving information. Running it
// twice in a row with no new memories is a no-op on the second run, because
// the first run's duplicates are inactive and excluded by the active filter.
type Consolidator struct {
	store   storage.MemoryStore
	cfg     config.EngineConfig
	monitor *PerformanceMonitor
}

// NewConsolidator creates a consolidation service. The monitor is optional.
func NewConsolidator(store storage.MemoryStore, cfg config.EngineConfig, monitor *PerformanceMonitor) *Consolidator {
	return &Consolidator{store: store, cfg: cfg, monitor: monitor}
}

// Run executes one consolidation pass. Each group's merge-and-deactivate is
// self-contained: cancellation between groups leaves no partial group, and a
// storage failure for one group is logged and skipped without aborting the
// batch.
func (c *Consolidator) Run(ctx context.Context, opts ConsolidationOptions) (*ConsolidationReport, error) {
	start := time.Now()

	memories, err := c.store.List(ctx, storage.ListOptions{
		UserID:     opts.UserID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation: failed to load memories: %w", err)
	}

	report := &ConsolidationReport{
		TotalMemories: len(memories),
		DryRun:        opts.DryRun,
	}

	groups := c.detectGroups(memories)
	report.DuplicateGroups = len(groups)

	for _, g := range groups {
		select {
		case <-ctx.Done():
			report.ProcessingTimeMs = time.Since(start).Milliseconds()
			return report, ctx.Err()
		default:
		}

		report.Groups = append(report.Groups, g.describe())

		if opts.DryRun {
			continue
		}

		if err := c.mergeGroup(ctx, g); err != nil {
			log.Printf("WARNING: consolidation group with primary %s failed, skipping: %v", g.primary.ID, err)
			report.GroupErrors = append(report.GroupErrors,
				fmt.Sprintf("primary %s: %v", g.primary.ID, err))
			continue
		}
		report.MemoriesUpdated++
		report.MemoriesDeactivated += len(g.duplicates)
	}

	report.ProcessingTimeMs = time.Since(start).Milliseconds()
	if c.monitor != nil {
		c.monitor.Track(OpDeduplication, time.Since(start), len(report.GroupErrors) == 0)
	}

	log.Printf("Consolidation finished: %d memories, %d groups, %d deactivated, %d errors (dryRun=%v)",
		report.TotalMemories, report.DuplicateGroups, report.MemoriesDeactivated,
		len(report.GroupErrors), opts.DryRun)
	return report, nil
}

// duplicateGroup is the internal working form of a detected group.
type duplicateGroup struct {
	primary    *types.MemoryEntry
	duplicates []*types.MemoryEntry
	reason     GroupReason
	similarity float64
}

func (g *duplicateGroup) describe() DuplicateGroup {
	ids := make([]string, len(g.duplicates))
	for i, d := range g.duplicates {
		ids[i] = d.ID
	}
	return DuplicateGroup{
		PrimaryID:    g.primary.ID,
		DuplicateIDs: ids,
		Reason:       g.reason,
		Similarity:   g.similarity,
	}
}

// detectGroups performs the single pairwise pass over the active memories.
// The input is ordered newest-first; a processed-marker set prevents
// re-comparing already-grouped entries.
func (c *Consolidator) detectGroups(memories []*types.MemoryEntry) []*duplicateGroup {
	processed := make(map[string]bool, len(memories))
	var groups []*duplicateGroup

	for i, m := range memories {
		if processed[m.ID] {
			continue
		}
		processed[m.ID] = true

		var members []*types.MemoryEntry
		reason := ReasonExactContent
		similarity := 0.0

		for _, cand := range memories[i+1:] {
			if processed[cand.ID] || cand.UserID != m.UserID {
				continue
			}

			r, score, ok := c.classifyDuplicate(m, cand)
			if !ok {
				continue
			}
			processed[cand.ID] = true
			members = append(members, cand)
			// The first duplicate's signal names the group.
			if len(members) == 1 {
				reason = r
				similarity = score
			}
		}

		if len(members) == 0 {
			continue
		}

		group := &duplicateGroup{reason: reason, similarity: similarity}
		group.primary, group.duplicates = selectPrimary(append([]*types.MemoryEntry{m}, members...))
		groups = append(groups, group)
	}
	return groups
}

// classifyDuplicate applies the three duplicate signals in priority order.
// Exact content wins over an equal semantic hash, which wins over fuzzy
// similarity; the first matching signal decides.
func (c *Consolidator) classifyDuplicate(a, b *types.MemoryEntry) (GroupReason, float64, bool) {
	if IsExactMatch(a, b) {
		return ReasonExactContent, 1.0, true
	}
	if SameSemanticHash(a, b) {
		return ReasonSemanticHash, 1.0, true
	}
	if sim := FuzzySimilarity(a, b); sim > c.cfg.DuplicateThreshold {
		return ReasonHighSimilarity, sim, true
	}
	return "", 0, false
}

// selectPrimary picks the group's surviving entry: highest importance, then
// highest access count, then most recent creation. Remaining ties resolve by
// input order, which is stable within one run.
func selectPrimary(members []*types.MemoryEntry) (*types.MemoryEntry, []*types.MemoryEntry) {
	primary := members[0]
	for _, m := range members[1:] {
		if betterPrimary(m, primary) {
			primary = m
		}
	}

	duplicates := make([]*types.MemoryEntry, 0, len(members)-1)
	for _, m := range members {
		if m != primary {
			duplicates = append(duplicates, m)
		}
	}
	return primary, duplicates
}

func betterPrimary(a, b *types.MemoryEntry) bool {
	if a.ImportanceScore != b.ImportanceScore {
		return a.ImportanceScore > b.ImportanceScore
	}
	if a.AccessCount != b.AccessCount {
		return a.AccessCount > b.AccessCount
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// mergeGroup folds every duplicate into the primary, writes the merged
// primary back, and deactivates the duplicates. Nothing is hard-deleted.
func (c *Consolidator) mergeGroup(ctx context.Context, g *duplicateGroup) error {
	now := time.Now()
	for _, dup := range g.duplicates {
		g.primary.MergeFrom(dup, now)
	}

	if err := c.store.ApplyMerge(ctx, g.primary); err != nil {
		return fmt.Errorf("merge into %s: %w", g.primary.ID, err)
	}

	for _, dup := range g.duplicates {
		if err := c.store.Deactivate(ctx, dup.ID); err != nil {
			return fmt.Errorf("deactivate %s: %w", dup.ID, err)
		}
	}
	return nil
}
