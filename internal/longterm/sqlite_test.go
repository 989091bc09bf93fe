package longterm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstack/tiermem/internal/clock"
	"github.com/agentstack/tiermem/internal/model"
)

func newTestStore(t *testing.T) (*SQLiteStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), WithClock(clk))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mem, err := s.Create(ctx, CreateParams{
		AgentID:  "agent-1",
		Category: "lesson",
		Summary:  "short summary",
		Details:  "full details of the lesson",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mem.ID == "" {
		t.Error("expected non-empty id")
	}
	if mem.Importance != DefaultImportance {
		t.Errorf("expected default importance %v, got %v", DefaultImportance, mem.Importance)
	}
	if mem.AccessCount != 0 {
		t.Errorf("expected access count 0, got %d", mem.AccessCount)
	}

	got, err := s.GetAndTouch(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Summary != "short summary" || got.Details != "full details of the lesson" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestCreateClampsAndTruncates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	long := make([]byte, 400)
	for i := range long {
		long[i] = 's'
	}
	mem, err := s.Create(ctx, CreateParams{
		AgentID:    "a",
		Category:   "lesson",
		Summary:    string(long),
		Details:    "details",
		Importance: floatPtr(1.8),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mem.Importance != 1 {
		t.Errorf("expected clamped importance 1, got %v", mem.Importance)
	}
	if len(mem.Summary) != model.SummaryMaxLen {
		t.Errorf("expected summary truncated to %d, got %d", model.SummaryMaxLen, len(mem.Summary))
	}
}

func TestGetAndTouchSemantics(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mem, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "s", Details: "d"})

	first, _ := s.GetAndTouch(ctx, mem.ID)
	if first.AccessCount != 1 {
		t.Errorf("expected access count 1 after first read, got %d", first.AccessCount)
	}
	if first.LastAccessedAt == nil {
		t.Error("expected last accessed set")
	}
	second, _ := s.GetAndTouch(ctx, mem.ID)
	if second.AccessCount != 2 {
		t.Errorf("expected access count 2, got %d", second.AccessCount)
	}

	// Miss is nil, not an error
	missing, err := s.GetAndTouch(ctx, "no-such-id")
	if err != nil {
		t.Errorf("miss should not error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil on miss, got %+v", missing)
	}
}

func TestQueryOrdering(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	low, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "low", Details: "d", Importance: floatPtr(0.3)})
	clk.Advance(time.Minute)
	hot, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "hot", Details: "d", Importance: floatPtr(0.9)})
	clk.Advance(time.Minute)
	warm, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "warm", Details: "d", Importance: floatPtr(0.9)})

	// Same importance: access count breaks the tie
	s.GetAndTouch(ctx, warm.ID)

	res, err := s.Query(ctx, QueryParams{AgentID: "a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Memories) != 3 {
		t.Fatalf("expected 3, got %d", len(res.Memories))
	}
	if res.Memories[0].ID != warm.ID {
		t.Errorf("expected most-accessed of equal importance first, got %q", res.Memories[0].Summary)
	}
	if res.Memories[1].ID != hot.ID {
		t.Errorf("expected %q second, got %q", "hot", res.Memories[1].Summary)
	}
	if res.Memories[2].ID != low.ID {
		t.Errorf("expected lowest importance last, got %q", res.Memories[2].Summary)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "1", Details: "d",
		Metadata: model.Metadata{WorkspaceID: "ws-1"}})
	s.Create(ctx, CreateParams{AgentID: "a", Category: "challenge", Summary: "2", Details: "d",
		Importance: floatPtr(0.9)})
	s.Create(ctx, CreateParams{AgentID: "b", Category: "lesson", Summary: "3", Details: "d"})

	res, _ := s.Query(ctx, QueryParams{AgentID: "a"})
	if res.Total != 2 {
		t.Errorf("agent filter: expected 2, got %d", res.Total)
	}
	res, _ = s.Query(ctx, QueryParams{AgentID: "a", Category: "lesson"})
	if res.Total != 1 {
		t.Errorf("category filter: expected 1, got %d", res.Total)
	}
	res, _ = s.Query(ctx, QueryParams{AgentID: "a", WorkspaceID: "ws-1"})
	if res.Total != 1 {
		t.Errorf("workspace filter: expected 1, got %d", res.Total)
	}
	res, _ = s.Query(ctx, QueryParams{AgentID: "a", MinImportance: 0.8})
	if res.Total != 1 {
		t.Errorf("min importance filter: expected 1, got %d", res.Total)
	}
}

func TestQueryTotalBeyondLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 0; i < 12; i++ {
		s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "s", Details: "d"})
	}
	res, _ := s.Query(ctx, QueryParams{AgentID: "a", Limit: 5})
	if len(res.Memories) != 5 {
		t.Errorf("expected 5 returned, got %d", len(res.Memories))
	}
	if res.Total != 12 {
		t.Errorf("expected pre-truncation total 12, got %d", res.Total)
	}
}

func TestUpdatePartial(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	mem, _ := s.Create(ctx, CreateParams{
		AgentID: "a", Category: "lesson", Summary: "original", Details: "d",
		Metadata: model.Metadata{Tags: []string{"keep"}, Confidence: 0.9},
	})

	clk.Advance(time.Hour)
	updated, err := s.Update(ctx, mem.ID, UpdateParams{
		Importance: floatPtr(0.95),
		Summary:    strPtr("revised"),
		Metadata:   &model.Metadata{Custom: map[string]any{"note": "merged"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Importance != 0.95 {
		t.Errorf("expected importance 0.95, got %v", updated.Importance)
	}
	if updated.Summary != "revised" {
		t.Errorf("expected revised summary, got %q", updated.Summary)
	}
	if len(updated.Metadata.Tags) != 1 || updated.Metadata.Tags[0] != "keep" {
		t.Errorf("expected existing tags preserved, got %v", updated.Metadata.Tags)
	}
	if updated.Metadata.Custom["note"] != "merged" {
		t.Errorf("expected custom key merged, got %v", updated.Metadata.Custom)
	}
	if !updated.UpdatedAt.After(mem.UpdatedAt) {
		t.Error("expected updatedAt bumped")
	}

	// Unknown id degrades to nil, nil
	ghost, err := s.Update(ctx, "no-such-id", UpdateParams{Importance: floatPtr(0.5)})
	if err != nil || ghost != nil {
		t.Errorf("expected nil, nil for unknown id, got %v, %v", ghost, err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mem, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "s", Details: "d"})
	if err := s.Delete(ctx, mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.GetAndTouch(ctx, mem.ID)
	if got != nil {
		t.Error("expected record gone")
	}
}

func TestMostAccessedAndStats(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "a", Details: "d", Importance: floatPtr(0.4)})
	b, _ := s.Create(ctx, CreateParams{AgentID: "a", Category: "challenge", Summary: "b", Details: "d", Importance: floatPtr(0.8)})
	s.GetAndTouch(ctx, a.ID)
	s.GetAndTouch(ctx, b.ID)
	s.GetAndTouch(ctx, b.ID)

	top, err := s.MostAccessed(ctx, "a", 1)
	if err != nil {
		t.Fatalf("most accessed: %v", err)
	}
	if len(top) != 1 || top[0].ID != b.ID {
		t.Fatalf("expected %q on top, got %+v", "b", top)
	}

	st, err := s.Stats(ctx, "a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 2 {
		t.Errorf("expected 2, got %d", st.Count)
	}
	if st.ByCategory["lesson"] != 1 || st.ByCategory["challenge"] != 1 {
		t.Errorf("unexpected category counts: %v", st.ByCategory)
	}
	if diff := st.AvgImportance - 0.6; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("expected avg importance 0.6, got %v", st.AvgImportance)
	}
	if st.TotalAccessCount != 3 {
		t.Errorf("expected total access count 3, got %d", st.TotalAccessCount)
	}
	if st.MostAccessed == nil || st.MostAccessed.ID != b.ID {
		t.Error("expected most-accessed record in stats")
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson",
		Summary: "Learned about typescript generics", Details: "d"})
	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson",
		Summary: "unrelated", Details: "deep dive into TYPESCRIPT decorators"})
	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson",
		Summary: "go concurrency", Details: "channels and goroutines"})

	results, err := s.Search(ctx, SearchParams{AgentID: "a", Text: "TypeScript"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
}

func TestSearchScopeConstraints(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "alpha topic", Details: "d",
		Metadata: model.Metadata{ProjectID: "p1"}})
	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "alpha topic", Details: "d",
		Metadata: model.Metadata{ProjectID: "p2"}})
	// No project set: matches any project constraint
	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "alpha topic", Details: "d"})

	results, err := s.Search(ctx, SearchParams{AgentID: "a", Text: "alpha", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected p1 record plus unscoped record, got %d", len(results))
	}
}

func TestSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "match minor", Details: "d", Importance: floatPtr(0.2)})
	s.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "match major", Details: "d", Importance: floatPtr(0.9)})

	results, _ := s.Search(ctx, SearchParams{AgentID: "a", Text: "match"})
	if len(results) != 2 || results[0].Summary != "match major" {
		t.Errorf("expected importance-descending order, got %+v", results)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	s1, clk := newTestStore(t)

	s1.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "one", Details: "d"})
	mem, _ := s1.Create(ctx, CreateParams{AgentID: "a", Category: "lesson", Summary: "two", Details: "d"})
	s1.GetAndTouch(ctx, mem.ID)

	exported, err := s1.ExportAll(ctx, "a")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported, got %d", len(exported))
	}

	s2, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dst.db"), WithClock(clk))
	if err != nil {
		t.Fatalf("create dst: %v", err)
	}
	defer s2.Close()

	n, err := s2.Import(ctx, exported)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported, got %d", n)
	}

	// Access counters survive the round trip
	got, _ := s2.GetAndTouch(ctx, mem.ID)
	if got == nil || got.AccessCount != 2 {
		t.Errorf("expected preserved access count, got %+v", got)
	}

	// Re-import skips duplicates
	n, _ = s2.Import(ctx, exported)
	if n != 0 {
		t.Errorf("expected 0 on duplicate import, got %d", n)
	}
}
