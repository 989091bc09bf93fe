package longterm

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/agentstack/tiermem/internal/clock"
	"github.com/agentstack/tiermem/internal/model"
)

// DefaultQueryLimit truncates query results when no limit is given.
const DefaultQueryLimit = 10

// DefaultImportance is applied when creation omits importance.
const DefaultImportance = 0.7

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	clk     clock.Clock
	newID   func() string
	logger  *slog.Logger
	entropy *rand.Rand
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithClock injects the time source.
func WithClock(c clock.Clock) SQLiteOption { return func(s *SQLiteStore) { s.clk = c } }

// WithIDFunc injects the id generator.
func WithIDFunc(f func() string) SQLiteOption { return func(s *SQLiteStore) { s.newID = f } }

// WithLogger injects the logger.
func WithLogger(l *slog.Logger) SQLiteOption { return func(s *SQLiteStore) { s.logger = l } }

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "create db dir", goerr.V("dir", dir))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, goerr.Wrap(err, "open db", goerr.V("path", dbPath))
	}

	s := &SQLiteStore{
		db:      db,
		clk:     clock.Real(),
		logger:  slog.Default(),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.newID = func() string {
		return ulid.MustNew(ulid.Timestamp(s.clk.Now()), s.entropy).String()
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "migrate")
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS long_term_memories (
		id                TEXT PRIMARY KEY,
		agent_id          TEXT NOT NULL,
		category          TEXT NOT NULL,
		summary           TEXT NOT NULL,
		details           TEXT NOT NULL,
		importance        REAL NOT NULL,
		metadata          TEXT,
		workspace_id      TEXT,
		project_id        TEXT,
		access_count      INTEGER NOT NULL DEFAULT 0,
		last_accessed_at  TEXT,
		consolidated_from TEXT,
		embedding         TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ltm_agent ON long_term_memories(agent_id);
	CREATE INDEX IF NOT EXISTS idx_ltm_agent_category ON long_term_memories(agent_id, category);
	CREATE INDEX IF NOT EXISTS idx_ltm_importance ON long_term_memories(agent_id, importance DESC);
	CREATE INDEX IF NOT EXISTS idx_ltm_access ON long_term_memories(agent_id, access_count DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

const ltmColumns = `id, agent_id, category, summary, details, importance, metadata,
	access_count, last_accessed_at, consolidated_from, embedding, created_at, updated_at`

// Create persists a new record. Unlike the read paths, failures here
// surface to the caller.
func (s *SQLiteStore) Create(ctx context.Context, p CreateParams) (*model.LongTermMemory, error) {
	if p.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}

	importance := DefaultImportance
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

	now := s.clk.Now()
	mem := &model.LongTermMemory{
		ID:               s.newID(),
		AgentID:          p.AgentID,
		Category:         p.Category,
		Summary:          model.Summarize(p.Summary),
		Details:          p.Details,
		Importance:       importance,
		Metadata:         meta,
		ConsolidatedFrom: p.ConsolidatedFrom,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.insert(ctx, mem); err != nil {
		return nil, goerr.Wrap(err, "insert long-term memory", goerr.V("agentID", p.AgentID))
	}
	return mem, nil
}

func (s *SQLiteStore) insert(ctx context.Context, m *model.LongTermMemory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return goerr.Wrap(err, "encode metadata")
	}
	var fromJSON *string
	if len(m.ConsolidatedFrom) > 0 {
		b, _ := json.Marshal(m.ConsolidatedFrom)
		v := string(b)
		fromJSON = &v
	}
	var embJSON *string
	if len(m.Embedding) > 0 {
		b, _ := json.Marshal(m.Embedding)
		v := string(b)
		embJSON = &v
	}
	var lastAccessed *string
	if m.LastAccessedAt != nil {
		v := m.LastAccessedAt.Format(time.RFC3339Nano)
		lastAccessed = &v
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO long_term_memories
		 (id, agent_id, category, summary, details, importance, metadata,
		  workspace_id, project_id, access_count, last_accessed_at,
		  consolidated_from, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AgentID, m.Category, m.Summary, m.Details, m.Importance, string(metaJSON),
		nullable(m.Metadata.WorkspaceID), nullable(m.Metadata.ProjectID),
		m.AccessCount, lastAccessed, fromJSON, embJSON,
		m.CreatedAt.Format(time.RFC3339Nano), m.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// GetAndTouch returns the record, bumping access tracking as a side effect
// of the read. Misses and internal read failures both come back as nil.
func (s *SQLiteStore) GetAndTouch(ctx context.Context, id string) (*model.LongTermMemory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories WHERE id = ?`, id)

	mem, err := scanLTM(row)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("long-term read failed, degrading to not-found",
				"id", id, "error", err)
		}
		return nil, nil
	}

	now := s.clk.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano), id); err != nil {
		s.logger.Warn("access tracking update failed", "id", id, "error", err)
	} else {
		mem.AccessCount++
		mem.LastAccessedAt = &now
	}

	return mem, nil
}

// Query returns records by agent with optional filters, ordered by
// importance desc, access count desc, update recency desc.
func (s *SQLiteStore) Query(ctx context.Context, p QueryParams) (*QueryResult, error) {
	if p.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}
	start := time.Now()

	where := []string{"agent_id = ?"}
	args := []any{p.AgentID}
	if p.Category != "" {
		where = append(where, "category = ?")
		args = append(args, p.Category)
	}
	if p.WorkspaceID != "" {
		where = append(where, "workspace_id = ?")
		args = append(args, p.WorkspaceID)
	}
	if p.MinImportance > 0 {
		where = append(where, "importance >= ?")
		args = append(args, p.MinImportance)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM long_term_memories WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, goerr.Wrap(err, "count long-term memories")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories WHERE `+cond+`
		 ORDER BY importance DESC, access_count DESC, updated_at DESC
		 LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, goerr.Wrap(err, "query long-term memories")
	}
	defer rows.Close()

	memories, err := collectLTM(rows)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Memories: memories, Total: total, Took: time.Since(start)}, nil
}

// ByCategory is Query narrowed to one category.
func (s *SQLiteStore) ByCategory(ctx context.Context, agentID, category string, limit int) ([]*model.LongTermMemory, error) {
	res, err := s.Query(ctx, QueryParams{AgentID: agentID, Category: category, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Memories, nil
}

// Update applies a partial update: importance is clamped, metadata is
// shallow-merged, summary replaced. UpdatedAt is bumped. Unknown ids (and
// internal read failures) return nil, nil.
func (s *SQLiteStore) Update(ctx context.Context, id string, p UpdateParams) (*model.LongTermMemory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories WHERE id = ?`, id)
	mem, err := scanLTM(row)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("long-term read failed, degrading to not-found",
				"id", id, "error", err)
		}
		return nil, nil
	}

	if p.Importance != nil {
		mem.Importance = model.ClampImportance(*p.Importance)
	}
	if p.Metadata != nil {
		mem.Metadata = mem.Metadata.Merge(*p.Metadata)
	}
	if p.Summary != nil {
		mem.Summary = *p.Summary
	}
	mem.UpdatedAt = s.clk.Now()

	metaJSON, err := json.Marshal(mem.Metadata)
	if err != nil {
		s.logger.Warn("metadata encoding failed, degrading to not-found", "id", id, "error", err)
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories
		 SET importance = ?, metadata = ?, workspace_id = ?, project_id = ?, summary = ?, updated_at = ?
		 WHERE id = ?`,
		mem.Importance, string(metaJSON),
		nullable(mem.Metadata.WorkspaceID), nullable(mem.Metadata.ProjectID),
		mem.Summary, mem.UpdatedAt.Format(time.RFC3339Nano), id); err != nil {
		s.logger.Warn("long-term update failed, degrading to not-found", "id", id, "error", err)
		return nil, nil
	}

	return mem, nil
}

// Delete hard-deletes the record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM long_term_memories WHERE id = ?`, id); err != nil {
		return goerr.Wrap(err, "delete long-term memory", goerr.V("id", id))
	}
	return nil
}

// MostAccessed returns the agent's records by access count descending.
func (s *SQLiteStore) MostAccessed(ctx context.Context, agentID string, limit int) ([]*model.LongTermMemory, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories
		 WHERE agent_id = ? ORDER BY access_count DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "query most accessed", goerr.V("agentID", agentID))
	}
	defer rows.Close()
	return collectLTM(rows)
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLTM(row scanner) (*model.LongTermMemory, error) {
	var m model.LongTermMemory
	var metaJSON, lastAccessed, fromJSON, embJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID, &m.AgentID, &m.Category, &m.Summary, &m.Details, &m.Importance,
		&metaJSON, &m.AccessCount, &lastAccessed, &fromJSON, &embJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAccessed.String)
		m.LastAccessedAt = &t
	}
	if fromJSON.Valid {
		json.Unmarshal([]byte(fromJSON.String), &m.ConsolidatedFrom)
	}
	if embJSON.Valid {
		json.Unmarshal([]byte(embJSON.String), &m.Embedding)
	}

	return &m, nil
}

func collectLTM(rows *sql.Rows) ([]*model.LongTermMemory, error) {
	var out []*model.LongTermMemory
	for rows.Next() {
		m, err := scanLTM(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "scan long-term memory")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
