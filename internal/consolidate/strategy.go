package consolidate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentstack/tiermem/internal/longterm"
	"github.com/agentstack/tiermem/internal/model"
)

// PromoteThreshold is the importance a candidate needs for one-to-one
// promotion.
const PromoteThreshold = 0.8

// mergeFanIn caps how many existing long-term records the merge strategy
// considers per category; the first (most relevant) one is updated.
const mergeFanIn = 5

// outcome is what a strategy reports back to the engine. The engine
// archives archiveIDs after the strategy returns.
type outcome struct {
	processed  int
	created    int
	updated    int
	archiveIDs []string
}

type strategyFunc func(ctx context.Context, e *Engine, agentID string, candidates []*model.ShortTermMemory) (*outcome, error)

// strategies is the closed dispatch table.
var strategies = map[Strategy]strategyFunc{
	StrategySummarize: runSummarize,
	StrategyPromote:   runPromote,
	StrategyMerge:     runMerge,
	StrategyArchive:   runArchive,
}

// groupByCategory buckets candidates by category, with bucket order
// deterministic (sorted category names).
func groupByCategory(candidates []*model.ShortTermMemory) ([]string, map[string][]*model.ShortTermMemory) {
	groups := map[string][]*model.ShortTermMemory{}
	for _, m := range candidates {
		groups[m.Category] = append(groups[m.Category], m)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups
}

// runSummarize creates one aggregated long-term record per category group.
func runSummarize(ctx context.Context, e *Engine, agentID string, candidates []*model.ShortTermMemory) (*outcome, error) {
	out := &outcome{}
	names, groups := groupByCategory(candidates)

	for _, category := range names {
		group := groups[category]

		oldest, newest := group[0].CreatedAt, group[0].CreatedAt
		var sum float64
		lines := make([]string, 0, len(group))
		ids := make([]string, 0, len(group))
		for i, m := range group {
			if m.CreatedAt.Before(oldest) {
				oldest = m.CreatedAt
			}
			if m.CreatedAt.After(newest) {
				newest = m.CreatedAt
			}
			sum += m.Importance
			lines = append(lines, fmt.Sprintf("[%d] %s", i+1, m.Content))
			ids = append(ids, m.ID)
		}
		mean := sum / float64(len(group))

		summary := fmt.Sprintf("Consolidated %d %s memories from %s to %s",
			len(group), category, oldest.Format("2006-01-02"), newest.Format("2006-01-02"))

		if _, err := e.ltm.Create(ctx, longterm.CreateParams{
			AgentID:          agentID,
			Category:         category,
			Summary:          summary,
			Details:          strings.Join(lines, "\n"),
			Importance:       &mean,
			Metadata:         mergeGroupMetadata(group, mean),
			ConsolidatedFrom: ids,
		}); err != nil {
			return nil, err
		}

		out.created++
		out.processed += len(group)
		out.archiveIDs = append(out.archiveIDs, ids...)
	}

	return out, nil
}

// mergeGroupMetadata unions the group's tags and keywords, keeps the first
// non-empty workspace/project id, and records the consolidation source.
func mergeGroupMetadata(group []*model.ShortTermMemory, meanImportance float64) model.Metadata {
	meta := model.Metadata{
		Tags:       []string{},
		Keywords:   []string{},
		Confidence: meanImportance,
		Relevance:  meanImportance,
		Source:     "consolidation",
		Custom:     map[string]any{"consolidatedCount": len(group)},
	}

	seenTags := map[string]bool{}
	seenKeywords := map[string]bool{}
	for _, m := range group {
		for _, t := range m.Metadata.Tags {
			if !seenTags[t] {
				seenTags[t] = true
				meta.Tags = append(meta.Tags, t)
			}
		}
		for _, k := range m.Metadata.Keywords {
			if !seenKeywords[k] {
				seenKeywords[k] = true
				meta.Keywords = append(meta.Keywords, k)
			}
		}
		if meta.WorkspaceID == "" {
			meta.WorkspaceID = m.Metadata.WorkspaceID
		}
		if meta.ProjectID == "" {
			meta.ProjectID = m.Metadata.ProjectID
		}
	}

	return meta
}

// runPromote copies candidates at or above PromoteThreshold one-to-one.
// Lower-importance candidates are left untouched.
func runPromote(ctx context.Context, e *Engine, agentID string, candidates []*model.ShortTermMemory) (*outcome, error) {
	out := &outcome{}

	for _, m := range candidates {
		if m.Importance < PromoteThreshold {
			continue
		}
		importance := m.Importance
		if _, err := e.ltm.Create(ctx, longterm.CreateParams{
			AgentID:          agentID,
			Category:         m.Category,
			Summary:          model.Summarize(m.Content),
			Details:          m.Content,
			Importance:       &importance,
			Metadata:         m.Metadata,
			ConsolidatedFrom: []string{m.ID},
		}); err != nil {
			return nil, err
		}
		out.created++
		out.processed++
		out.archiveIDs = append(out.archiveIDs, m.ID)
	}

	return out, nil
}

// runMerge folds each category group into the most relevant existing
// long-term record of that category. A group with no existing record is
// skipped wholesale; its candidates stay in short-term memory.
func runMerge(ctx context.Context, e *Engine, agentID string, candidates []*model.ShortTermMemory) (*outcome, error) {
	out := &outcome{}
	names, groups := groupByCategory(candidates)

	for _, category := range names {
		group := groups[category]

		existing, err := e.ltm.ByCategory(ctx, agentID, category, mergeFanIn)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			continue
		}

		target := existing[0]
		summary := target.Summary + fmt.Sprintf(" (Updated with %d new insights)", len(group))
		if _, err := e.ltm.Update(ctx, target.ID, longterm.UpdateParams{
			Summary: &summary,
			Metadata: &model.Metadata{
				Custom: map[string]any{"lastConsolidation": e.clk.Now()},
			},
		}); err != nil {
			return nil, err
		}

		out.updated++
		out.processed += len(group)
		for _, m := range group {
			out.archiveIDs = append(out.archiveIDs, m.ID)
		}
	}

	return out, nil
}

// runArchive discards every candidate without long-term writes.
func runArchive(ctx context.Context, e *Engine, agentID string, candidates []*model.ShortTermMemory) (*outcome, error) {
	out := &outcome{processed: len(candidates)}
	for _, m := range candidates {
		out.archiveIDs = append(out.archiveIDs, m.ID)
	}
	return out, nil
}
