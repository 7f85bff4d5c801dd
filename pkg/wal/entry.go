package wal

import "github.com/meridiandb/hexad/pkg/registry"

// Entry is one record of the replicated log, per spec §3's log entry shape.
type Entry struct {
	Term        uint64           `json:"term"`
	Index       uint64           `json:"index"`
	Command     registry.Command `json:"command"`
	TimestampMs int64            `json:"timestamp_ms"`
}
