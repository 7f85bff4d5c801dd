package consensus

import (
	"context"
	"time"

	"github.com/meridiandb/hexad/pkg/events"
	hexadlog "github.com/meridiandb/hexad/pkg/log"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/wal"
)

// becomeLeader initialises leader-only state, appends a noop entry to its
// own term, and immediately sends a round of heartbeats so followers don't
// time out waiting to learn of the change. The noop is not cosmetic: Raft
// §5.4.2 forbids a leader from committing an entry from an earlier term by
// replication count alone, so an election that is never followed by an
// entry of the new term can leave prior-term entries permanently stuck
// uncommitted (spec §9, "presence of noop on leader election").
func (n *Node) becomeLeader() {
	n.role = Leader
	n.leaderID = n.id
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers))
	for _, peer := range n.peers {
		n.nextIndex[peer] = n.lastLogIndex() + 1
		n.matchIndex[peer] = 0
	}
	n.appendNoop()
	n.advanceCommitIndex()
	hexadlog.Info("became leader for term")
	n.publish(events.EventLeaderElected, n.id+" became leader")
	n.sendHeartbeats()
}

// appendNoop appends a noop command to the leader's own log at its current
// term, mirroring handlePropose's append but with no caller waiting on the
// result.
func (n *Node) appendNoop() {
	index := n.lastLogIndex() + 1
	entry := wal.Entry{Term: n.currentTerm, Index: index, Command: registry.Noop, TimestampMs: time.Now().UnixMilli()}
	n.log = append(n.log, entry)
	if err := n.store.Append([]wal.Entry{entry}); err != nil {
		hexadlog.Warn("append noop entry: " + err.Error())
		n.log = n.log[:len(n.log)-1]
		return
	}
	if n.matchIndex == nil {
		n.matchIndex = make(map[string]uint64, len(n.peers))
	}
	n.matchIndex[n.id] = index
}

// sendHeartbeats fires one AppendEntries round trip per peer, each carrying
// whatever entries that peer is currently missing (a true heartbeat when
// nextIndex already covers the leader's whole log).
func (n *Node) sendHeartbeats() {
	for _, peer := range n.peers {
		peer := peer
		next := n.nextIndex[peer]
		prevIndex := next - 1
		prevTerm, ok := n.termAt(prevIndex)
		if !ok {
			// Peer is behind the leader's snapshot horizon; a full
			// snapshot transfer is out of scope for this core and the
			// peer must be rebuilt out of band. Skip until it catches up
			// on its own or an operator re-seeds it.
			continue
		}
		entries := n.entriesFrom(next)
		args := AppendEntriesArgs{
			Term:         n.currentTerm,
			LeaderID:     n.id,
			PrevLogIndex: prevIndex,
			PrevLogTerm:  prevTerm,
			Entries:      entries,
			LeaderCommit: n.commitIndex,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RPCTimeout)
			defer cancel()
			reply, err := n.transport.SendAppendEntries(ctx, peer, args)
			if err != nil {
				return
			}
			n.appendResultCh <- appendResult{
				peer:       peer,
				term:       args.Term,
				sentIndex:  prevIndex + uint64(len(entries)),
				reply:      reply,
			}
		}()
	}
}

type appendResult struct {
	peer      string
	term      uint64
	sentIndex uint64
	reply     AppendEntriesReply
}

// handleAppendResult applies one peer's AppendEntries acknowledgement,
// advancing nextIndex/matchIndex on success or backing nextIndex off using
// the follower's conflict hint on failure, then re-evaluates commitIndex.
func (n *Node) handleAppendResult(res appendResult) {
	if n.role != Leader || res.term != n.currentTerm {
		return
	}
	if res.reply.Term > n.currentTerm {
		n.setTerm(res.reply.Term)
		return
	}
	if res.reply.Success {
		if res.sentIndex > n.matchIndex[res.peer] {
			n.matchIndex[res.peer] = res.sentIndex
		}
		n.nextIndex[res.peer] = res.sentIndex + 1
		n.advanceCommitIndex()
		return
	}

	if res.reply.ConflictTerm == 0 {
		n.nextIndex[res.peer] = res.reply.ConflictIndex
		return
	}
	// Find the leader's own last entry in ConflictTerm, if any, and retry
	// from just after it; otherwise back off to the follower's first index
	// of that term, per the Raft paper's §5.3 optimisation.
	newNext := res.reply.ConflictIndex
	for idx := n.lastLogIndex(); idx > n.snapshotIndex; idx-- {
		term, ok := n.termAt(idx)
		if !ok {
			break
		}
		if term == res.reply.ConflictTerm {
			newNext = idx + 1
			break
		}
		if term < res.reply.ConflictTerm {
			break
		}
	}
	n.nextIndex[res.peer] = newNext
}

// advanceCommitIndex raises commitIndex to the highest index replicated to a
// majority, but only if that entry was appended during the leader's current
// term — the safety rule from the Raft paper's §5.4.2 that prevents a
// leader from committing (and then losing) an entry from an earlier term.
func (n *Node) advanceCommitIndex() {
	for idx := n.lastLogIndex(); idx > n.commitIndex; idx-- {
		term, ok := n.termAt(idx)
		if !ok || term != n.currentTerm {
			continue
		}
		count := 1 // the leader itself
		for _, peer := range n.peers {
			if n.matchIndex[peer] >= idx {
				count++
			}
		}
		if count >= (len(n.peers)+1)/2+1 {
			n.commitIndex = idx
			n.applyCommitted()
			return
		}
	}
}

// handleAppendEntries implements the AppendEntries RPC receiver, Raft paper
// §5.3.
func (n *Node) handleAppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	if args.Term > n.currentTerm {
		n.setTerm(args.Term)
	}
	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	n.role = Follower
	n.leaderID = args.LeaderID
	n.resetElectionTimer()

	prevTerm, ok := n.termAt(args.PrevLogIndex)
	if !ok || prevTerm != args.PrevLogTerm {
		conflictIndex, conflictTerm := n.conflictHint(args.PrevLogIndex)
		return AppendEntriesReply{Term: n.currentTerm, Success: false, ConflictIndex: conflictIndex, ConflictTerm: conflictTerm}
	}

	firstNewIndex := n.reconcileLog(args.PrevLogIndex, args.Entries)
	if err := n.store.Append(n.entriesFrom(firstNewIndex)); err != nil {
		hexadlog.Warn("append log entries: " + err.Error())
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.LeaderCommit > n.commitIndex {
		newCommit := args.LeaderCommit
		if n.lastLogIndex() < newCommit {
			newCommit = n.lastLogIndex()
		}
		n.commitIndex = newCommit
		n.applyCommitted()
	}

	return AppendEntriesReply{Term: n.currentTerm, Success: true}
}

// conflictHint locates the hint AppendEntriesReply returns when prevIndex
// doesn't match: the first index of the conflicting term, or one past the
// follower's own log end if prevIndex is beyond it entirely.
func (n *Node) conflictHint(prevIndex uint64) (index, term uint64) {
	if prevIndex > n.lastLogIndex() {
		return n.lastLogIndex() + 1, 0
	}
	conflictTerm, _ := n.termAt(prevIndex)
	idx := prevIndex
	for idx > n.snapshotIndex {
		t, ok := n.termAt(idx - 1)
		if !ok || t != conflictTerm {
			break
		}
		idx--
	}
	return idx, conflictTerm
}

// reconcileLog overwrites the tail of the in-memory log starting at
// prevIndex+1 with newEntries wherever they diverge, per the Raft paper's
// §5.3 log-matching rule: an existing entry that conflicts with a new one
// (same index, different term) and everything after it must be discarded.
// It returns the lowest index that is actually new to this follower's
// durable log — either the point it diverged and was truncated, or one past
// its previous last entry if every entry in newEntries already matched —
// so the caller appends only the genuinely new suffix to the WAL instead of
// re-persisting entries already fsynced from an earlier, overlapping
// AppendEntries call (e.g. a retried or duplicated heartbeat).
func (n *Node) reconcileLog(prevIndex uint64, newEntries []wal.Entry) uint64 {
	firstNewIndex := n.lastLogIndex() + 1
	for i, e := range newEntries {
		absIndex := prevIndex + uint64(i) + 1
		if existingTerm, ok := n.termAt(absIndex); ok {
			if existingTerm == e.Term {
				continue
			}
			n.truncateLogAfter(absIndex - 1)
		}
		if absIndex < firstNewIndex {
			firstNewIndex = absIndex
		}
		n.log = append(n.log[:absIndex-n.snapshotIndex-1], e)
	}
	return firstNewIndex
}

func (n *Node) truncateLogAfter(after uint64) {
	if after < n.snapshotIndex {
		after = n.snapshotIndex
	}
	n.log = n.log[:after-n.snapshotIndex]
	if err := n.store.TruncateAfter(after); err != nil {
		hexadlog.Warn("truncate log: " + err.Error())
	}
}
