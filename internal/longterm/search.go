package longterm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agentstack/tiermem/internal/model"
)

// Search finds records whose summary or details contain the text,
// case-insensitively. ProjectID/WorkspaceID constraints admit records with
// a matching value or with the field unset, ordered by importance
// descending.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]*model.LongTermMemory, error) {
	if p.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	pattern := "%" + strings.ToLower(p.Text) + "%"

	where := []string{
		"agent_id = ?",
		"(lower(summary) LIKE ? OR lower(details) LIKE ?)",
	}
	args := []any{p.AgentID, pattern, pattern}

	if p.ProjectID != "" {
		where = append(where, "(project_id = ? OR project_id IS NULL)")
		args = append(args, p.ProjectID)
	}
	if p.WorkspaceID != "" {
		where = append(where, "(workspace_id = ? OR workspace_id IS NULL)")
		args = append(args, p.WorkspaceID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ltmColumns+` FROM long_term_memories
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY importance DESC
		 LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, goerr.Wrap(err, "search long-term memories", goerr.V("text", p.Text))
	}
	defer rows.Close()

	return collectLTM(rows)
}
