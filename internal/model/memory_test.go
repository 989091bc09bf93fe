package model

import (
	"testing"
	"time"
)

func TestClampImportance(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0, 0},
		{1, 1},
		{-0.3, 0},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := ClampImportance(tt.in); got != tt.want {
			t.Errorf("ClampImportance(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	short := "a short content"
	if got := Summarize(short); got != short {
		t.Errorf("expected short content unchanged, got %q", got)
	}

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	if got := Summarize(string(long)); len(got) != SummaryMaxLen {
		t.Errorf("expected %d chars, got %d", SummaryMaxLen, len(got))
	}
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{
		Tags:       []string{"a"},
		Confidence: 0.8,
		Source:     "chat",
		Custom:     map[string]any{"k1": "v1"},
	}
	merged := base.Merge(Metadata{
		Tags:   []string{"b", "c"},
		Custom: map[string]any{"k2": "v2"},
	})

	if len(merged.Tags) != 2 || merged.Tags[0] != "b" {
		t.Errorf("expected incoming tags to overwrite, got %v", merged.Tags)
	}
	if merged.Confidence != 0.8 {
		t.Errorf("expected confidence preserved, got %v", merged.Confidence)
	}
	if merged.Source != "chat" {
		t.Errorf("expected source preserved, got %q", merged.Source)
	}
	if merged.Custom["k1"] != "v1" || merged.Custom["k2"] != "v2" {
		t.Errorf("expected custom keys merged, got %v", merged.Custom)
	}
	// Original untouched
	if _, ok := base.Custom["k2"]; ok {
		t.Error("merge mutated the receiver")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	m := &ShortTermMemory{ExpiresAt: now.Add(time.Hour)}
	if m.Expired(now) {
		t.Error("not yet expired")
	}
	if !m.Expired(now.Add(time.Hour)) {
		t.Error("expired at the boundary")
	}
}

func TestHasAnyTag(t *testing.T) {
	m := Metadata{Tags: []string{"deploy", "infra"}}
	if !m.HasAnyTag([]string{"infra", "other"}) {
		t.Error("expected overlap")
	}
	if m.HasAnyTag([]string{"none"}) {
		t.Error("expected no overlap")
	}
}
