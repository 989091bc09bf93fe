package longterm

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
)

// Stats summarizes the agent's long-term memory: counts, average
// importance, total access count, and the single most-accessed record.
func (s *SQLiteStore) Stats(ctx context.Context, agentID string) (*Stats, error) {
	st := &Stats{AgentID: agentID, ByCategory: map[string]int{}}

	var avg sql.NullFloat64
	var totalAccess sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(importance), SUM(access_count)
		 FROM long_term_memories WHERE agent_id = ?`, agentID).
		Scan(&st.Count, &avg, &totalAccess)
	if err != nil {
		return nil, goerr.Wrap(err, "aggregate long-term stats", goerr.V("agentID", agentID))
	}
	if avg.Valid {
		st.AvgImportance = avg.Float64
	}
	if totalAccess.Valid {
		st.TotalAccessCount = int(totalAccess.Int64)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM long_term_memories
		 WHERE agent_id = ? GROUP BY category`, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "count categories", goerr.V("agentID", agentID))
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, goerr.Wrap(err, "scan category count")
		}
		st.ByCategory[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "iterate category counts")
	}

	if st.Count > 0 {
		top, err := s.MostAccessed(ctx, agentID, 1)
		if err != nil {
			return nil, err
		}
		if len(top) > 0 {
			st.MostAccessed = top[0]
		}
	}

	return st, nil
}
