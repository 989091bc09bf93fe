// Package model defines the core memory data types shared by the
// short-term and long-term stores.
package model

import "time"

// Well-known memory categories. Category is an open tag; these are the
// values the coordinator and consolidation engine treat specially.
const (
	CategoryInteraction = "interaction"
	CategoryLesson      = "lesson"
	CategoryChallenge   = "challenge"
	CategoryFeedback    = "feedback"
)

// DefaultSessionID groups records created without an explicit session.
const DefaultSessionID = "default"

// Metadata is the structured bag attached to every memory record.
type Metadata struct {
	Tags        []string       `json:"tags"`
	Keywords    []string       `json:"keywords"`
	Confidence  float64        `json:"confidence"`
	Relevance   float64        `json:"relevance"`
	Source      string         `json:"source"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	ProjectID   string         `json:"project_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// Merge returns the shallow merge of m with in: non-zero fields of in
// overwrite, everything else is preserved. Custom keys merge per key.
func (m Metadata) Merge(in Metadata) Metadata {
	out := m
	if len(in.Tags) > 0 {
		out.Tags = in.Tags
	}
	if len(in.Keywords) > 0 {
		out.Keywords = in.Keywords
	}
	if in.Confidence != 0 {
		out.Confidence = in.Confidence
	}
	if in.Relevance != 0 {
		out.Relevance = in.Relevance
	}
	if in.Source != "" {
		out.Source = in.Source
	}
	if in.WorkspaceID != "" {
		out.WorkspaceID = in.WorkspaceID
	}
	if in.ProjectID != "" {
		out.ProjectID = in.ProjectID
	}
	if in.UserID != "" {
		out.UserID = in.UserID
	}
	if len(in.Custom) > 0 {
		merged := make(map[string]any, len(out.Custom)+len(in.Custom))
		for k, v := range out.Custom {
			merged[k] = v
		}
		for k, v := range in.Custom {
			merged[k] = v
		}
		out.Custom = merged
	}
	return out
}

// HasAnyTag reports whether any of the wanted tags is present.
func (m Metadata) HasAnyTag(wanted []string) bool {
	for _, w := range wanted {
		for _, t := range m.Tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// ShortTermMemory is an ephemeral, session-scoped, TTL-bound record.
type ShortTermMemory struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	SessionID  string    `json:"session_id"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given time.
func (m *ShortTermMemory) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// LongTermMemory is a durable, access-tracked record.
type LongTermMemory struct {
	ID               string     `json:"id"`
	AgentID          string     `json:"agent_id"`
	Category         string     `json:"category"`
	Summary          string     `json:"summary"`
	Details          string     `json:"details"`
	Importance       float64    `json:"importance"`
	Metadata         Metadata   `json:"metadata"`
	AccessCount      int        `json:"access_count"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
	ConsolidatedFrom []string   `json:"consolidated_from,omitempty"`
	Embedding        []float32  `json:"embedding,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SummaryMaxLen caps the summary field on creation.
const SummaryMaxLen = 200

// Summarize truncates content to a summary of at most SummaryMaxLen chars.
func Summarize(content string) string {
	if len(content) <= SummaryMaxLen {
		return content
	}
	return content[:SummaryMaxLen]
}

// ClampImportance bounds v to [0,1]. Out-of-range inputs are clamped on
// every write path rather than rejected.
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
