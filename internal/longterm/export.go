package longterm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agentstack/tiermem/internal/model"
)

// ExportAll returns every record, optionally filtered to one agent,
// ordered by creation time.
func (s *SQLiteStore) ExportAll(ctx context.Context, agentID string) ([]*model.LongTermMemory, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if agentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, agentID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories
		 WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "export long-term memories")
	}
	defer rows.Close()
	return collectLTM(rows)
}

// Import inserts exported records verbatim, keeping ids, access counters,
// and timestamps. Records whose id already exists are skipped.
func (s *SQLiteStore) Import(ctx context.Context, records []*model.LongTermMemory) (int, error) {
	imported := 0
	for _, m := range records {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM long_term_memories WHERE id = ?`, m.ID).Scan(&exists); err != nil {
			return imported, goerr.Wrap(err, "check existing record", goerr.V("id", m.ID))
		}
		if exists > 0 {
			continue
		}
		if err := s.insert(ctx, m); err != nil {
			return imported, goerr.Wrap(err, "import record", goerr.V("id", m.ID))
		}
		imported++
	}
	return imported, nil
}
