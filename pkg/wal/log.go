package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	hexadlog "github.com/meridiandb/hexad/pkg/log"
)

const logFile = "command-log.jsonl"

// commandLog is the line-framed append-only file backing the replicated
// log: one JSON-encoded Entry per line. Appends are fsynced before Append
// returns, so a caller that has seen Append succeed knows the entry will
// survive a crash.
type commandLog struct {
	path string
	file *os.File
}

func openCommandLog(dir string) (*commandLog, error) {
	path := filepath.Join(dir, logFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open command log: %w", err)
	}
	return &commandLog{path: path, file: f}, nil
}

func (c *commandLog) Close() error {
	return c.file.Close()
}

// Append writes entries to the log and fsyncs once after the whole batch,
// the durability boundary the caller waits on before acknowledging a
// leader's AppendEntries or a client's proposal.
func (c *commandLog) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("wal: encode log entry %d: %w", e.Index, err)
		}
	}
	if _, err := c.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("wal: write log entries: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync command log: %w", err)
	}
	return nil
}

// readAll replays every well-formed line in the log. A line that fails to
// parse ends the read there rather than erroring out: a crash mid-append
// leaves exactly one torn line at the tail, and everything before it is
// still valid and must not be discarded.
func readAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wal: open command log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			hexadlog.Warn("wal: stopping replay at torn log line")
			break
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("wal: scan command log: %w", err)
	}
	return entries, nil
}

// rewriteCommandLog atomically replaces the on-disk log with entries,
// used by TruncateAfter (dropping a conflicting suffix) and by Compact
// (dropping everything a new snapshot now covers).
func rewriteCommandLog(dir string, entries []Entry) (*commandLog, error) {
	path := filepath.Join(dir, logFile)
	tmp := filepath.Join(dir, logFile+".tmp."+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: create log rewrite temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			os.Remove(tmp)
			return nil, fmt.Errorf("wal: encode log entry %d: %w", e.Index, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("wal: sync rewritten log: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("wal: close rewritten log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("wal: rename rewritten log into place: %w", err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: reopen command log after rewrite: %w", err)
	}
	return &commandLog{path: path, file: out}, nil
}
