package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/meridiandb/hexad/pkg/registry"
)

// WAL is a node's durable store: persistent term/vote, the command log, and
// periodic Registry snapshots. All public methods are safe for concurrent
// use; the consensus Node serialises writes through its own event loop but
// reads (e.g. for diagnostics) may come from other goroutines.
type WAL struct {
	mu  sync.Mutex
	dir string
	log *commandLog
}

// Open creates dir if necessary and opens the on-disk log for appending.
// It does not itself replay state — call Recover for that.
func Open(dir string) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directory %s: %w", dir, err)
	}
	cl, err := openCommandLog(dir)
	if err != nil {
		return nil, err
	}
	return &WAL{dir: dir, log: cl}, nil
}

// Dir returns the directory this WAL persists to, so a caller that already
// holds an open WAL can recover state from the same location without
// threading the path through separately.
func (w *WAL) Dir() string {
	return w.dir
}

// Close releases the underlying log file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.log.Close()
}

// RecoveredState is everything a consensus Node needs to resume after a
// restart: the persisted term/vote, the most recent snapshot (or an empty
// Registry if none was ever taken), and the log entries on top of it.
type RecoveredState struct {
	DurableState      DurableState
	Registry          registry.Registry
	SnapshotIndex     uint64
	SnapshotTerm      uint64
	Entries           []Entry
}

// Recover reads durable state, the latest snapshot, and every log entry
// written after that snapshot, in that order. A log line past the last
// successfully parsed one (a torn write from a crash mid-append) is
// silently dropped — the entry never got an AppendEntries acknowledgement
// from a majority, so losing it cannot violate the commit invariant.
func Recover(dir string) (RecoveredState, error) {
	state, err := loadDurableState(dir)
	if err != nil {
		return RecoveredState{}, err
	}
	reg, snapIndex, snapTerm, err := loadSnapshot(dir)
	if err != nil {
		return RecoveredState{}, err
	}
	all, err := readAll(filepath.Join(dir, logFile))
	if err != nil {
		return RecoveredState{}, err
	}

	entries := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Index > snapIndex {
			entries = append(entries, e)
		}
	}

	return RecoveredState{
		DurableState:  state,
		Registry:      reg,
		SnapshotIndex: snapIndex,
		SnapshotTerm:  snapTerm,
		Entries:       entries,
	}, nil
}

// SaveDurableState persists the current term and vote. Must complete before
// the caller sends the RequestVote reply or AppendEntries acknowledgement
// it guards.
func (w *WAL) SaveDurableState(state DurableState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return saveDurableState(w.dir, state)
}

// Append writes entries to the log, fsyncing before returning.
func (w *WAL) Append(entries []Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.log.Append(entries)
}

// TruncateAfter drops every log entry with Index > after, used when a new
// leader's AppendEntries reveals the follower's tail conflicts with the
// leader's log (spec §4.4's log-matching resolution).
func (w *WAL) TruncateAfter(after uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := readAll(filepath.Join(w.dir, logFile))
	if err != nil {
		return err
	}
	kept := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Index <= after {
			kept = append(kept, e)
		}
	}
	if err := w.log.Close(); err != nil {
		return err
	}
	cl, err := rewriteCommandLog(w.dir, kept)
	if err != nil {
		return err
	}
	w.log = cl
	return nil
}

// Snapshot persists reg as the new snapshot at (lastIncludedIndex,
// lastIncludedTerm), then compacts the log by dropping every entry the
// snapshot now covers.
func (w *WAL) Snapshot(reg registry.Registry, lastIncludedIndex, lastIncludedTerm uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := saveSnapshot(w.dir, reg, lastIncludedIndex, lastIncludedTerm); err != nil {
		return err
	}

	all, err := readAll(filepath.Join(w.dir, logFile))
	if err != nil {
		return err
	}
	kept := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Index > lastIncludedIndex {
			kept = append(kept, e)
		}
	}
	if err := w.log.Close(); err != nil {
		return err
	}
	cl, err := rewriteCommandLog(w.dir, kept)
	if err != nil {
		return err
	}
	w.log = cl
	return nil
}
