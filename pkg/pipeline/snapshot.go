package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/rules"
)

// LoadSnapshots reads entity metric snapshots from a JSON file (an array
// of feature contexts) and attaches the owning account's policy to each.
// Snapshots for accounts not present in the configuration are rejected.
func LoadSnapshots(path string, cfg *config.Config) ([]*rules.FeatureContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snapshots []*rules.FeatureContext
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parse snapshot file %s: %w", path, err)
	}

	for _, fc := range snapshots {
		account := cfg.Account(fc.AccountID)
		if account == nil {
			return nil, fmt.Errorf("snapshot references unknown account %q (entity %s)",
				fc.AccountID, fc.EntityID)
		}
		fc.Policy = &account.Policy
	}

	return snapshots, nil
}

// SnapshotIndex looks snapshots up by (account, entity). It serves the
// rollback monitor's current-KPI lookups.
type SnapshotIndex struct {
	byKey map[string]*rules.FeatureContext
}

// NewSnapshotIndex builds an index over the given snapshots.
func NewSnapshotIndex(snapshots []*rules.FeatureContext) *SnapshotIndex {
	idx := &SnapshotIndex{byKey: make(map[string]*rules.FeatureContext, len(snapshots))}
	for _, fc := range snapshots {
		idx.byKey[fc.AccountID+"|"+fc.EntityID] = fc
	}
	return idx
}

// Snapshot returns the entity's snapshot, or nil when absent.
func (i *SnapshotIndex) Snapshot(ctx context.Context, accountID, entityID string) (*rules.FeatureContext, error) {
	return i.byKey[accountID+"|"+entityID], nil
}

// FileSource serves snapshots from a JSON file and re-reads it whenever
// the file changes on disk. Long-lived processes use it so scheduled
// scans see the latest exported metrics without a restart.
type FileSource struct {
	path string
	cfg  *config.Config

	mu      sync.Mutex
	modTime time.Time
	index   *SnapshotIndex
}

// NewFileSource creates a file-backed snapshot source. The file is read
// lazily on first lookup.
func NewFileSource(path string, cfg *config.Config) *FileSource {
	return &FileSource{path: path, cfg: cfg}
}

// Snapshot returns the entity's snapshot from the current file contents,
// or nil when absent.
func (s *FileSource) Snapshot(ctx context.Context, accountID, entityID string) (*rules.FeatureContext, error) {
	idx, err := s.refresh()
	if err != nil {
		return nil, err
	}
	return idx.Snapshot(ctx, accountID, entityID)
}

func (s *FileSource) refresh() (*SnapshotIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	if s.index != nil && info.ModTime().Equal(s.modTime) {
		return s.index, nil
	}

	snapshots, err := LoadSnapshots(s.path, s.cfg)
	if err != nil {
		return nil, err
	}
	s.index = NewSnapshotIndex(snapshots)
	s.modTime = info.ModTime()
	return s.index, nil
}
