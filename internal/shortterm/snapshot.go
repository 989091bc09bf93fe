package shortterm

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agentstack/tiermem/internal/model"
)

// LoadSnapshot restores the store from a JSON snapshot written by
// SaveSnapshot. A missing file is not an error. Expired records are dropped
// on load. Snapshots let consecutive CLI invocations share one short-term
// memory; they do not make concurrent processes consistent.
func (s *Store) LoadSnapshot(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return goerr.Wrap(err, "read snapshot", goerr.V("path", path))
	}

	var records []*model.ShortTermMemory
	if err := json.Unmarshal(b, &records); err != nil {
		return goerr.Wrap(err, "decode snapshot", goerr.V("path", path))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	for _, m := range records {
		if m.ID == "" || m.Expired(now) {
			continue
		}
		s.records[m.ID] = m
	}
	return nil
}

// SaveSnapshot writes all live records to path as JSON.
func (s *Store) SaveSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "create snapshot dir", goerr.V("path", path))
	}

	s.mu.Lock()
	now := s.clk.Now()
	records := make([]*model.ShortTermMemory, 0, len(s.records))
	for _, m := range s.records {
		if !m.Expired(now) {
			records = append(records, m)
		}
	}
	s.mu.Unlock()

	b, err := json.Marshal(records)
	if err != nil {
		return goerr.Wrap(err, "encode snapshot")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return goerr.Wrap(err, "write snapshot", goerr.V("path", path))
	}
	return nil
}
