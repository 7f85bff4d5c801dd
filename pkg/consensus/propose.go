package consensus

import (
	"time"

	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/wal"
)

// handlePropose appends command to the leader's own log and registers a
// pending continuation that resolves once the entry commits. Followers and
// candidates reject immediately with ferrors.KindNotLeader.
func (n *Node) handlePropose(req proposeRequest) {
	if !n.isLeader() {
		req.reply <- ProposeResult{Err: ferrors.NotLeader(n.leaderID)}
		return
	}
	if err := n.machine.Validate(n.appliedReg, req.command); err != nil {
		req.reply <- ProposeResult{Err: err}
		return
	}

	index := n.lastLogIndex() + 1
	entry := wal.Entry{
		Term:        n.currentTerm,
		Index:       index,
		Command:     req.command,
		TimestampMs: time.Now().UnixMilli(),
	}
	n.log = append(n.log, entry)
	if err := n.store.Append([]wal.Entry{entry}); err != nil {
		n.log = n.log[:len(n.log)-1]
		req.reply <- ProposeResult{Err: err}
		return
	}

	if n.pending == nil {
		n.pending = make(map[uint64]chan ProposeResult)
	}
	n.pending[index] = req.reply
	n.matchIndex[n.id] = index

	n.advanceCommitIndex()
	n.sendHeartbeats()
}

// applyCommitted folds every newly committed entry into appliedReg in order
// and resolves any pending proposal waiting on that index.
func (n *Node) applyCommitted() {
	for n.lastApplied < n.commitIndex {
		n.lastApplied++
		entry, ok := n.getEntry(n.lastApplied)
		if !ok {
			continue
		}
		n.appliedReg = n.machine.Apply(n.appliedReg, entry.Command, registry.EntryTimestamp(entry.TimestampMs))

		if ch, waiting := n.pending[n.lastApplied]; waiting {
			ch <- ProposeResult{Index: n.lastApplied, Registry: n.appliedReg}
			delete(n.pending, n.lastApplied)
		}
	}
}

func (n *Node) getEntry(index uint64) (wal.Entry, bool) {
	if index <= n.snapshotIndex || index > n.lastLogIndex() {
		return wal.Entry{}, false
	}
	return n.log[index-n.snapshotIndex-1], true
}
