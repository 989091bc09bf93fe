// Package coordinator composes the short-term store, the long-term store,
// and the consolidation engine into the single interface the host layer
// consumes.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agentstack/tiermem/internal/consolidate"
	"github.com/agentstack/tiermem/internal/longterm"
	"github.com/agentstack/tiermem/internal/model"
	"github.com/agentstack/tiermem/internal/shortterm"
)

// Memory tier names accepted by CreateMemory and MemoriesByAgent.
const (
	TierShortTerm = "short-term"
	TierLongTerm  = "long-term"
)

const byAgentLimit = 100

// Coordinator is the single entry point over the tiered memory subsystem.
// All collaborators are injected; it owns no global state.
type Coordinator struct {
	stm    *shortterm.Store
	ltm    longterm.Store
	engine *consolidate.Engine
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger injects the logger.
func WithLogger(l *slog.Logger) Option { return func(co *Coordinator) { co.logger = l } }

// New wires a Coordinator over the stores and engine.
func New(stm *shortterm.Store, ltm longterm.Store, engine *consolidate.Engine, opts ...Option) *Coordinator {
	co := &Coordinator{
		stm:    stm,
		ltm:    ltm,
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// CreateRequest describes a memory to create in either tier.
type CreateRequest struct {
	Type       string // TierLongTerm writes durably; anything else is short-term
	AgentID    string
	SessionID  string
	Category   string
	Content    string
	Importance *float64
	Metadata   model.Metadata
}

// CreatedMemory reports which tier the record landed in.
type CreatedMemory struct {
	Type      string                 `json:"type"`
	ShortTerm *model.ShortTermMemory `json:"short_term,omitempty"`
	LongTerm  *model.LongTermMemory  `json:"long_term,omitempty"`
}

// CreateMemory writes to exactly one tier; a long-term create does not
// also write short-term.
func (co *Coordinator) CreateMemory(ctx context.Context, req CreateRequest) (*CreatedMemory, error) {
	if req.Type == TierLongTerm {
		mem, err := co.ltm.Create(ctx, longterm.CreateParams{
			AgentID:    req.AgentID,
			Category:   req.Category,
			Summary:    model.Summarize(req.Content),
			Details:    req.Content,
			Importance: req.Importance,
			Metadata:   req.Metadata,
		})
		if err != nil {
			return nil, err
		}
		return &CreatedMemory{Type: TierLongTerm, LongTerm: mem}, nil
	}

	mem, err := co.stm.Create(shortterm.CreateParams{
		AgentID:    req.AgentID,
		SessionID:  req.SessionID,
		Category:   req.Category,
		Content:    req.Content,
		Importance: req.Importance,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &CreatedMemory{Type: TierShortTerm, ShortTerm: mem}, nil
}

// MemoryContext is the assembled working context for one agent session.
type MemoryContext struct {
	RecentInteractions []*model.ShortTermMemory `json:"recent_interactions"`
	RelevantLessons    []*model.LongTermMemory  `json:"relevant_lessons"`
	RelevantChallenges []*model.LongTermMemory  `json:"relevant_challenges"`
	RelevantFeedback   []*model.LongTermMemory  `json:"relevant_feedback"`
	Summary            string                   `json:"summary"`
	TotalMemories      int                      `json:"total_memories"`
	RetrievalTime      time.Duration            `json:"retrieval_time"`
}

// MemoryContext assembles recent interactions plus the top lessons,
// challenges, and feedback for the agent. The query argument is currently
// unused; assembly ranks by category, not query relevance.
func (co *Coordinator) MemoryContext(ctx context.Context, agentID, sessionID, query string) (*MemoryContext, error) {
	start := time.Now()

	recent, err := co.stm.RecentInteractions(agentID, sessionID, 10)
	if err != nil {
		return nil, err
	}
	lessons, err := co.ltm.ByCategory(ctx, agentID, model.CategoryLesson, 5)
	if err != nil {
		return nil, err
	}
	challenges, err := co.ltm.ByCategory(ctx, agentID, model.CategoryChallenge, 5)
	if err != nil {
		return nil, err
	}
	feedback, err := co.ltm.ByCategory(ctx, agentID, model.CategoryFeedback, 5)
	if err != nil {
		return nil, err
	}

	mc := &MemoryContext{
		RecentInteractions: recent.Memories,
		RelevantLessons:    lessons,
		RelevantChallenges: challenges,
		RelevantFeedback:   feedback,
		RetrievalTime:      time.Since(start),
	}
	mc.TotalMemories = len(mc.RecentInteractions) + len(lessons) + len(challenges) + len(feedback)
	mc.Summary = contextSummary(mc)
	return mc, nil
}

func contextSummary(mc *MemoryContext) string {
	var parts []string
	if n := len(mc.RecentInteractions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d recent interactions", n))
	}
	if n := len(mc.RelevantLessons); n > 0 {
		parts = append(parts, fmt.Sprintf("%d learned lessons", n))
	}
	if n := len(mc.RelevantChallenges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d known challenges", n))
	}
	if n := len(mc.RelevantFeedback); n > 0 {
		parts = append(parts, fmt.Sprintf("%d feedback received", n))
	}
	if len(parts) == 0 {
		return "No memory context available"
	}
	return strings.Join(parts, ", ")
}

// QueryRequest is the cross-tier query filter.
type QueryRequest struct {
	AgentID       string
	SessionID     string
	Category      string
	WorkspaceID   string
	Tags          []string
	MinImportance float64
	Limit         int
}

// CombinedQueryResult is the concatenation of both tiers' results,
// short-term first, with total and processing time summed across tiers.
type CombinedQueryResult struct {
	ShortTerm []*model.ShortTermMemory `json:"short_term"`
	LongTerm  []*model.LongTermMemory  `json:"long_term"`
	Total     int                      `json:"total"`
	Took      time.Duration            `json:"took"`
}

// QueryMemories runs the same filter against both stores. Filters the
// long-term store cannot express (session, tags) apply to the short-term
// half only.
func (co *Coordinator) QueryMemories(ctx context.Context, req QueryRequest) (*CombinedQueryResult, error) {
	st, err := co.stm.Query(shortterm.QueryParams{
		AgentID:       req.AgentID,
		SessionID:     req.SessionID,
		Category:      req.Category,
		WorkspaceID:   req.WorkspaceID,
		Tags:          req.Tags,
		MinImportance: req.MinImportance,
		Limit:         req.Limit,
	})
	if err != nil {
		return nil, err
	}
	lt, err := co.ltm.Query(ctx, longterm.QueryParams{
		AgentID:       req.AgentID,
		Category:      req.Category,
		WorkspaceID:   req.WorkspaceID,
		MinImportance: req.MinImportance,
		Limit:         req.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &CombinedQueryResult{
		ShortTerm: st.Memories,
		LongTerm:  lt.Memories,
		Total:     st.Total + lt.Total,
		Took:      st.Took + lt.Took,
	}, nil
}

// AgentMemories holds each tier's records for one agent.
type AgentMemories struct {
	ShortTerm []*model.ShortTermMemory `json:"short_term,omitempty"`
	LongTerm  []*model.LongTermMemory  `json:"long_term,omitempty"`
}

// MemoriesByAgent returns the agent's records in the requested scope
// (TierShortTerm, TierLongTerm, or both when empty), capped per tier.
func (co *Coordinator) MemoriesByAgent(ctx context.Context, agentID, scope string) (*AgentMemories, error) {
	if scope != "" && scope != TierShortTerm && scope != TierLongTerm {
		return nil, goerr.New("unknown memory scope", goerr.V("scope", scope))
	}

	out := &AgentMemories{}

	if scope == "" || scope == TierShortTerm {
		res, err := co.stm.Query(shortterm.QueryParams{AgentID: agentID, Limit: byAgentLimit})
		if err != nil {
			return nil, err
		}
		out.ShortTerm = res.Memories
	}
	if scope == "" || scope == TierLongTerm {
		res, err := co.ltm.Query(ctx, longterm.QueryParams{AgentID: agentID, Limit: byAgentLimit})
		if err != nil {
			return nil, err
		}
		out.LongTerm = res.Memories
	}

	return out, nil
}

// ConsolidationStats is a placeholder block until run history is tracked.
type ConsolidationStats struct {
	LastRun   *time.Time `json:"last_run,omitempty"`
	TotalRuns int        `json:"total_runs"`
}

// CombinedStats aggregates both tiers plus consolidation history.
type CombinedStats struct {
	ShortTerm     *shortterm.SessionStats `json:"short_term"`
	LongTerm      *longterm.Stats         `json:"long_term"`
	Consolidation ConsolidationStats      `json:"consolidation"`
}

// Stats combines short-term stats across all sessions with long-term
// stats.
func (co *Coordinator) Stats(ctx context.Context, agentID string) (*CombinedStats, error) {
	lt, err := co.ltm.Stats(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &CombinedStats{
		ShortTerm:     co.stm.SessionStats(agentID, shortterm.AllSessions),
		LongTerm:      lt,
		Consolidation: ConsolidationStats{},
	}, nil
}

// Consolidate delegates one run to the engine.
func (co *Coordinator) Consolidate(ctx context.Context, req consolidate.Request) (*consolidate.Result, error) {
	return co.engine.Consolidate(ctx, req)
}

// RunAutoConsolidation consolidates each agent with the engine's fixed
// auto parameters. A failing agent is logged and skipped; results are
// returned only for agents that succeeded.
func (co *Coordinator) RunAutoConsolidation(ctx context.Context, agentIDs []string) []*consolidate.Result {
	var results []*consolidate.Result
	for _, agentID := range agentIDs {
		res, err := co.engine.RunAuto(ctx, agentID)
		if err != nil {
			co.logger.Error("auto consolidation failed for agent",
				"agent_id", agentID, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// ClearSession removes every short-term record of the session.
func (co *Coordinator) ClearSession(ctx context.Context, agentID, sessionID string) int {
	return co.stm.ClearSession(agentID, sessionID)
}
