// Package consolidate migrates short-term memories into long-term storage
// (or discards them) under an explicit strategy.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agentstack/tiermem/internal/clock"
	"github.com/agentstack/tiermem/internal/longterm"
	"github.com/agentstack/tiermem/internal/shortterm"
)

// Strategy selects how candidates migrate into long-term storage.
type Strategy string

const (
	// StrategySummarize groups candidates by category and writes one
	// aggregated long-term record per group. The default.
	StrategySummarize Strategy = "summarize"

	// StrategyPromote copies high-importance candidates one-to-one.
	StrategyPromote Strategy = "promote"

	// StrategyMerge folds candidates into an existing long-term record of
	// the same category, skipping groups with none.
	StrategyMerge Strategy = "merge"

	// StrategyArchive discards candidates without long-term writes.
	StrategyArchive Strategy = "archive"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	_, ok := strategies[s]
	return ok
}

// Defaults for consolidation requests.
const (
	DefaultMinImportance = 0.4
	DefaultMaxAge        = 24 * time.Hour

	// AutoMinImportance is the threshold used by RunAuto.
	AutoMinImportance = 0.6
)

// Request parameterizes one consolidation run. Nil fields take defaults.
type Request struct {
	AgentID       string         `json:"agent_id"`
	Strategy      Strategy       `json:"strategy,omitempty"`
	MinImportance *float64       `json:"min_importance,omitempty"`
	MaxAge        *time.Duration `json:"max_age,omitempty"` // minimum age before a record is eligible
}

// Result reports what one consolidation run did.
type Result struct {
	AgentID      string        `json:"agent_id"`
	Strategy     Strategy      `json:"strategy"`
	STMProcessed int           `json:"stm_processed"`
	LTMCreated   int           `json:"ltm_created"`
	LTMUpdated   int           `json:"ltm_updated"`
	STMArchived  int           `json:"stm_archived"`
	Duration     time.Duration `json:"duration"`
	Summary      string        `json:"summary"`
}

// Engine moves data between the two stores. It is stateless per call;
// consolidating already-archived inputs is a no-op since they are no
// longer found as candidates.
//
// There is no transaction spanning candidate read, long-term write, and
// short-term archival: a crash in between can duplicate a record on retry.
// The guarantee is at-least-once, not exactly-once.
type Engine struct {
	stm    *shortterm.Store
	ltm    longterm.Store
	clk    clock.Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clk = c } }

// WithLogger injects the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an Engine over the two stores.
func New(stm *shortterm.Store, ltm longterm.Store, opts ...Option) *Engine {
	e := &Engine{
		stm:    stm,
		ltm:    ltm,
		clk:    clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Consolidate runs one consolidation pass. Underlying store failures
// propagate to the caller.
func (e *Engine) Consolidate(ctx context.Context, req Request) (*Result, error) {
	if req.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategySummarize
	}
	run, ok := strategies[strategy]
	if !ok {
		return nil, goerr.New("unknown consolidation strategy", goerr.V("strategy", strategy))
	}

	minImportance := DefaultMinImportance
	if req.MinImportance != nil {
		minImportance = *req.MinImportance
	}
	maxAge := DefaultMaxAge
	if req.MaxAge != nil {
		maxAge = *req.MaxAge
	}

	start := time.Now()
	candidates := e.stm.ConsolidationCandidates(req.AgentID, minImportance, maxAge)
	e.logger.Debug("selected consolidation candidates",
		"agent_id", req.AgentID, "strategy", string(strategy), "candidates", len(candidates))

	out, err := run(ctx, e, req.AgentID, candidates)
	if err != nil {
		return nil, goerr.Wrap(err, "consolidation failed",
			goerr.V("agentID", req.AgentID), goerr.V("strategy", strategy))
	}

	archived := e.stm.Archive(out.archiveIDs)

	res := &Result{
		AgentID:      req.AgentID,
		Strategy:     strategy,
		STMProcessed: out.processed,
		LTMCreated:   out.created,
		LTMUpdated:   out.updated,
		STMArchived:  archived,
		Duration:     time.Since(start),
	}
	res.Summary = recap(res)

	e.logger.Info("consolidation finished",
		"agent_id", req.AgentID, "strategy", string(strategy),
		"stm_processed", res.STMProcessed, "ltm_created", res.LTMCreated,
		"ltm_updated", res.LTMUpdated, "stm_archived", res.STMArchived)

	return res, nil
}

// RunAuto is Consolidate with fixed parameters: importance 0.6 and above,
// records at least a day old, summarize strategy.
func (e *Engine) RunAuto(ctx context.Context, agentID string) (*Result, error) {
	minImportance := AutoMinImportance
	maxAge := DefaultMaxAge
	return e.Consolidate(ctx, Request{
		AgentID:       agentID,
		Strategy:      StrategySummarize,
		MinImportance: &minImportance,
		MaxAge:        &maxAge,
	})
}

func recap(r *Result) string {
	s := fmt.Sprintf("Strategy: %s, Processed %d STM entries", r.Strategy, r.STMProcessed)
	if r.LTMCreated > 0 {
		s += fmt.Sprintf(", Created %d LTM entries", r.LTMCreated)
	}
	if r.LTMUpdated > 0 {
		s += fmt.Sprintf(", Updated %d LTM entries", r.LTMUpdated)
	}
	s += fmt.Sprintf(", Archived %d STM entries", r.STMArchived)
	return s
}
