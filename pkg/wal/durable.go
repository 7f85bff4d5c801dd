package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DurableState is the subset of Raft state that must be fsynced before a
// node casts a vote or acknowledges an AppendEntries, per spec §4.4: voting
// for a candidate and then crashing before persisting the vote would let the
// node vote twice in the same term after restart.
type DurableState struct {
	CurrentTerm uint64 `json:"current_term"`
	VotedFor    string `json:"voted_for,omitempty"`
}

const durableStateFile = "raft-state.json"

// saveDurableState writes state to dir atomically: encode to a sibling temp
// file, fsync it, then rename over the live file. A crash can only ever
// leave the previous file intact or the new one complete, never a partial
// write readable at the canonical path.
func saveDurableState(dir string, state DurableState) error {
	path := filepath.Join(dir, durableStateFile)
	tmp := filepath.Join(dir, durableStateFile+".tmp."+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create durable state temp file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("wal: encode durable state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("wal: sync durable state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("wal: close durable state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("wal: rename durable state into place: %w", err)
	}
	return nil
}

// loadDurableState reads dir's persisted term/vote, returning the zero value
// if the node has never voted or persisted a term before.
func loadDurableState(dir string) (DurableState, error) {
	path := filepath.Join(dir, durableStateFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DurableState{}, nil
	}
	if err != nil {
		return DurableState{}, fmt.Errorf("wal: open durable state: %w", err)
	}
	defer f.Close()

	var state DurableState
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		return DurableState{}, fmt.Errorf("wal: decode durable state: %w", err)
	}
	return state, nil
}
