// Package shortterm implements the ephemeral, session-scoped working
// memory: per-session capacity eviction, TTL expiry, and candidate
// selection for consolidation.
package shortterm

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"

	"github.com/agentstack/tiermem/internal/clock"
	"github.com/agentstack/tiermem/internal/model"
)

const (
	// DefaultTTL is how long a record stays live after creation.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxPerSession caps live records per (agent, session).
	DefaultMaxPerSession = 15

	// DefaultQueryLimit truncates query results when no limit is given.
	DefaultQueryLimit = 10

	// importanceTieEpsilon: importances closer than this are a tie and
	// the tie is broken by recency.
	importanceTieEpsilon = 0.1
)

// Store is an in-memory, single-process short-term memory store. All
// mutation is serialized by one mutex so cap eviction stays deterministic;
// it offers no cross-process consistency.
type Store struct {
	mu      sync.Mutex
	records map[string]*model.ShortTermMemory

	clk           clock.Clock
	ttl           time.Duration
	maxPerSession int
	newID         func() string
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source.
func WithClock(c clock.Clock) Option { return func(s *Store) { s.clk = c } }

// WithTTL overrides the record TTL.
func WithTTL(d time.Duration) Option { return func(s *Store) { s.ttl = d } }

// WithMaxPerSession overrides the per-session capacity.
func WithMaxPerSession(n int) Option { return func(s *Store) { s.maxPerSession = n } }

// WithIDFunc injects the id generator.
func WithIDFunc(f func() string) Option { return func(s *Store) { s.newID = f } }

// WithLogger injects the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates an empty Store.
func New(opts ...Option) *Store {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		records:       map[string]*model.ShortTermMemory{},
		clk:           clock.Real(),
		ttl:           DefaultTTL,
		maxPerSession: DefaultMaxPerSession,
		logger:        slog.Default(),
	}
	s.newID = func() string {
		return ulid.MustNew(ulid.Timestamp(s.clk.Now()), entropy).String()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams holds parameters for storing a short-term memory.
type CreateParams struct {
	AgentID    string
	SessionID  string
	Category   string
	Content    string
	Importance *float64 // nil means default 0.5
	Metadata   model.Metadata
}

// Create stores a new record, applying defaults and clamping importance,
// then evicts the oldest records beyond the per-session capacity.
func (s *Store) Create(p CreateParams) (*model.ShortTermMemory, error) {
	if p.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = model.DefaultSessionID
	}
	importance := 0.5
	if p.Importance != nil {
		importance = model.ClampImportance(*p.Importance)
	}

	meta := p.Metadata
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	if meta.Keywords == nil {
		meta.Keywords = []string{}
	}
	if meta.Confidence == 0 {
		meta.Confidence = 0.8
	}
	if meta.Relevance == 0 {
		meta.Relevance = 0.7
	}
	if meta.Source == "" {
		meta.Source = "chat"
	}

	now := s.clk.Now()
	mem := &model.ShortTermMemory{
		ID:         s.newID(),
		AgentID:    p.AgentID,
		SessionID:  sessionID,
		Category:   p.Category,
		Content:    p.Content,
		Importance: importance,
		Metadata:   meta,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[mem.ID] = mem
	evicted := s.evictOverCapLocked(mem.AgentID, mem.SessionID, now)
	if evicted > 0 {
		s.logger.Debug("evicted over-capacity short-term memories",
			"agent_id", mem.AgentID, "session_id", mem.SessionID, "evicted", evicted)
	}

	return mem, nil
}

// evictOverCapLocked deletes the oldest live records of (agent, session)
// beyond maxPerSession. Caller holds s.mu.
func (s *Store) evictOverCapLocked(agentID, sessionID string, now time.Time) int {
	var live []*model.ShortTermMemory
	for _, m := range s.records {
		if m.AgentID == agentID && m.SessionID == sessionID && !m.Expired(now) {
			live = append(live, m)
		}
	}
	if len(live) <= s.maxPerSession {
		return 0
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	for _, m := range live[s.maxPerSession:] {
		delete(s.records, m.ID)
	}
	return len(live) - s.maxPerSession
}

// Get returns the record iff present and not expired. An expired record is
// purged on the read and reported as absent (nil).
func (s *Store) Get(id string) *model.ShortTermMemory {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.records[id]
	if !ok {
		return nil
	}
	if m.Expired(s.clk.Now()) {
		delete(s.records, id)
		return nil
	}
	return m
}

// QueryParams holds short-term query filters. AgentID is required; all
// other filters are optional and combined with AND.
type QueryParams struct {
	AgentID       string
	SessionID     string
	Category      string
	WorkspaceID   string
	Tags          []string // any overlap matches
	MinImportance float64
	Limit         int
}

// QueryResult is a page of records plus the pre-truncation total.
type QueryResult struct {
	Memories []*model.ShortTermMemory `json:"memories"`
	Total    int                      `json:"total"`
	Took     time.Duration            `json:"took"`
}

// Query returns non-expired records matching the filters, sorted by
// importance descending with near-ties broken by recency.
func (s *Store) Query(p QueryParams) (*QueryResult, error) {
	if p.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}
	start := time.Now()

	s.mu.Lock()
	now := s.clk.Now()
	var matched []*model.ShortTermMemory
	for _, m := range s.records {
		if m.Expired(now) {
			continue
		}
		if m.AgentID != p.AgentID {
			continue
		}
		if p.SessionID != "" && m.SessionID != p.SessionID {
			continue
		}
		if p.Category != "" && m.Category != p.Category {
			continue
		}
		if p.WorkspaceID != "" && m.Metadata.WorkspaceID != p.WorkspaceID {
			continue
		}
		if len(p.Tags) > 0 && !m.Metadata.HasAnyTag(p.Tags) {
			continue
		}
		if m.Importance < p.MinImportance {
			continue
		}
		matched = append(matched, m)
	}
	s.mu.Unlock()

	sortByImportance(matched)

	total := len(matched)
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return &QueryResult{Memories: matched, Total: total, Took: time.Since(start)}, nil
}

// sortByImportance orders by importance descending; importances within
// importanceTieEpsilon are a tie broken by CreatedAt descending.
func sortByImportance(ms []*model.ShortTermMemory) {
	sort.SliceStable(ms, func(i, j int) bool {
		di := ms[i].Importance - ms[j].Importance
		if di > -importanceTieEpsilon && di < importanceTieEpsilon {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return di > 0
	})
}

// RecentInteractions returns the latest interaction-category records for
// the session.
func (s *Store) RecentInteractions(agentID, sessionID string, limit int) (*QueryResult, error) {
	return s.Query(QueryParams{
		AgentID:   agentID,
		SessionID: sessionID,
		Category:  model.CategoryInteraction,
		Limit:     limit,
	})
}

// UpdateImportance clamps v and writes it. Unknown ids are a silent no-op.
func (s *Store) UpdateImportance(id string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.records[id]; ok {
		m.Importance = model.ClampImportance(v)
	}
}

// ConsolidationCandidates returns all non-expired records of the agent
// with importance >= minImportance, at least minAge old when minAge > 0,
// sorted by importance descending.
func (s *Store) ConsolidationCandidates(agentID string, minImportance float64, minAge time.Duration) []*model.ShortTermMemory {
	s.mu.Lock()
	now := s.clk.Now()
	var out []*model.ShortTermMemory
	for _, m := range s.records {
		if m.AgentID != agentID || m.Expired(now) {
			continue
		}
		if m.Importance < minImportance {
			continue
		}
		if minAge > 0 && m.CreatedAt.After(now.Add(-minAge)) {
			continue
		}
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

// Archive hard-deletes the listed records and returns the count removed.
// Used by the consolidation engine after migration.
func (s *Store) Archive(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// SessionStats summarizes one session, or every session of the agent when
// sessionID is "all".
type SessionStats struct {
	AgentID       string         `json:"agent_id"`
	SessionID     string         `json:"session_id"`
	Count         int            `json:"count"`
	ByCategory    map[string]int `json:"by_category"`
	AvgImportance float64        `json:"avg_importance"`
	Oldest        *time.Time     `json:"oldest,omitempty"`
	Newest        *time.Time     `json:"newest,omitempty"`
}

// AllSessions spans every session of an agent in SessionStats.
const AllSessions = "all"

// SessionStats computes live-record statistics for the scope.
func (s *Store) SessionStats(agentID, sessionID string) *SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	st := &SessionStats{
		AgentID:    agentID,
		SessionID:  sessionID,
		ByCategory: map[string]int{},
	}

	var sum float64
	for _, m := range s.records {
		if m.AgentID != agentID || m.Expired(now) {
			continue
		}
		if sessionID != AllSessions && m.SessionID != sessionID {
			continue
		}
		st.Count++
		st.ByCategory[m.Category]++
		sum += m.Importance
		if st.Oldest == nil || m.CreatedAt.Before(*st.Oldest) {
			t := m.CreatedAt
			st.Oldest = &t
		}
		if st.Newest == nil || m.CreatedAt.After(*st.Newest) {
			t := m.CreatedAt
			st.Newest = &t
		}
	}
	if st.Count > 0 {
		st.AvgImportance = sum / float64(st.Count)
	}
	return st
}

// ClearSession hard-deletes every record of (agent, session) and returns
// the count removed.
func (s *Store) ClearSession(agentID, sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.records {
		if m.AgentID == agentID && m.SessionID == sessionID {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// CleanupExpired sweeps all expired records process-wide and returns the
// count removed. Scheduling is the caller's concern.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	removed := 0
	for id, m := range s.records {
		if m.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cleaned up expired short-term memories", "removed", removed)
	}
	return removed
}

// Len returns the number of physically present records, expired included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
