// Package wal implements the on-disk write-ahead log a consensus node
// replays on startup: persistent Raft state (current_term, voted_for), a
// line-framed append-only command log, and periodic Registry snapshots.
//
// Every write that must survive a crash goes through a temp-file-then-rename
// sequence so a node never observes a half-written file, and the log format
// tolerates a torn last line left by a crash mid-append.
package wal
