// Package longterm provides the durable, access-tracked memory store. The
// Store interface is the boundary to the durable record repository; the
// SQLite implementation is the shipped backend.
package longterm

import (
	"context"
	"time"

	"github.com/agentstack/tiermem/internal/model"
)

// CreateParams holds parameters for persisting a long-term memory.
type CreateParams struct {
	AgentID          string
	Category         string
	Summary          string
	Details          string
	Importance       *float64 // nil means default 0.7
	Metadata         model.Metadata
	ConsolidatedFrom []string
}

// QueryParams holds long-term query filters. AgentID is required.
type QueryParams struct {
	AgentID       string
	Category      string
	WorkspaceID   string
	MinImportance float64
	Limit         int
}

// QueryResult is a page of records plus the pre-truncation total.
type QueryResult struct {
	Memories []*model.LongTermMemory `json:"memories"`
	Total    int                     `json:"total"`
	Took     time.Duration           `json:"took"`
}

// UpdateParams describes a partial update. Nil fields are untouched;
// Metadata is shallow-merged with the stored metadata.
type UpdateParams struct {
	Importance *float64
	Metadata   *model.Metadata
	Summary    *string
}

// SearchParams holds full-text search parameters. Text is matched
// case-insensitively as a substring of summary or details. ProjectID and
// WorkspaceID, when set, match records with the same value or with the
// field unset.
type SearchParams struct {
	AgentID     string
	Text        string
	ProjectID   string
	WorkspaceID string
	Limit       int
}

// Stats summarizes an agent's long-term memory.
type Stats struct {
	AgentID          string                `json:"agent_id"`
	Count            int                   `json:"count"`
	ByCategory       map[string]int        `json:"by_category"`
	AvgImportance    float64               `json:"avg_importance"`
	TotalAccessCount int                   `json:"total_access_count"`
	MostAccessed     *model.LongTermMemory `json:"most_accessed,omitempty"`
}

// Store is the durable record repository contract.
//
/// Read paths never fail loudly: GetAndTouch and Update report an unknown id
// (or an internal read failure) as a nil record. Create surfaces every
// failure to the caller.
type Store interface {
	// Create persists a new record with access count zero.
	Create(ctx context.Context, p CreateParams) (*model.LongTermMemory, error)

	// GetAndTouch returns the record by id, incrementing its access count
	// and stamping last-accessed as a side effect of the read. The
	// increment is read-then-write; concurrent touches may lose counts,
	// which is acceptable for a popularity heuristic.
	GetAndTouch(ctx context.Context, id string) (*model.LongTermMemory, error)

	// Query returns records by agent with optional filters, ordered by
	// importance, then access count, then update recency.
	Query(ctx context.Context, p QueryParams) (*QueryResult, error)

	// ByCategory is Query narrowed to one category.
	ByCategory(ctx context.Context, agentID, category string, limit int) ([]*model.LongTermMemory, error)

	// Update applies a partial update and bumps UpdatedAt. Unknown ids
	// return nil, nil.
	Update(ctx context.Context, id string, p UpdateParams) (*model.LongTermMemory, error)

	// Delete hard-deletes the record.
	Delete(ctx context.Context, id string) error

	// MostAccessed returns the agent's records by access count descending.
	MostAccessed(ctx context.Context, agentID string, limit int) ([]*model.LongTermMemory, error)

	// Stats summarizes the agent's long-term memory.
	Stats(ctx context.Context, agentID string) (*Stats, error)

	// Search matches text against summary or details.
	Search(ctx context.Context, p SearchParams) ([]*model.LongTermMemory, error)

	// ExportAll returns every record of the agent (all agents when empty).
	ExportAll(ctx context.Context, agentID string) ([]*model.LongTermMemory, error)

	// Import inserts exported records, keeping their ids and counters.
	Import(ctx context.Context, records []*model.LongTermMemory) (int, error)

	// Close releases the underlying storage handle.
	Close() error
}
