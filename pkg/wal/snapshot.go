package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/meridiandb/hexad/pkg/registry"
)

const snapshotFile = "registry-snapshot.json"

// snapshotEnvelope is what actually lands on disk: the Registry plus the log
// coordinates it was taken at, so Recover knows which log entries it already
// reflects. Only replicated fields travel in the envelope — Backend's
// volatile LastSeen/ResponseTimeMS are excluded by their own json tags.
type snapshotEnvelope struct {
	LastIncludedIndex uint64            `json:"last_included_index"`
	LastIncludedTerm  uint64            `json:"last_included_term"`
	Registry          registry.Registry `json:"registry"`
}

// saveSnapshot persists reg atomically, the same temp-file-fsync-rename
// sequence as saveDurableState, so a crash mid-snapshot never corrupts the
// previous one.
func saveSnapshot(dir string, reg registry.Registry, lastIncludedIndex, lastIncludedTerm uint64) error {
	path := filepath.Join(dir, snapshotFile)
	tmp := filepath.Join(dir, snapshotFile+".tmp."+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create snapshot temp file: %w", err)
	}
	env := snapshotEnvelope{
		LastIncludedIndex: lastIncludedIndex,
		LastIncludedTerm:  lastIncludedTerm,
		Registry:          reg,
	}
	if err := json.NewEncoder(f).Encode(env); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("wal: encode snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("wal: sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("wal: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("wal: rename snapshot into place: %w", err)
	}
	return nil
}

// loadSnapshot returns the empty Registry and zero coordinates if dir has
// never taken a snapshot.
func loadSnapshot(dir string) (registry.Registry, uint64, uint64, error) {
	path := filepath.Join(dir, snapshotFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return registry.Empty(), 0, 0, nil
	}
	if err != nil {
		return registry.Registry{}, 0, 0, fmt.Errorf("wal: open snapshot: %w", err)
	}
	defer f.Close()

	var env snapshotEnvelope
	if err := json.NewDecoder(f).Decode(&env); err != nil {
		return registry.Registry{}, 0, 0, fmt.Errorf("wal: decode snapshot: %w", err)
	}
	if env.Registry.Stores == nil {
		env.Registry = registry.Empty()
	}
	return env.Registry, env.LastIncludedIndex, env.LastIncludedTerm, nil
}
