// Package consensus implements the hand-rolled Raft node replicating the
// Registry state machine: leader election, log replication, and commit,
// all driven by a single event loop goroutine per node so that every piece
// of mutable state is touched by exactly one goroutine.
package consensus

import (
	"context"
	"math/rand"
	"time"

	"github.com/meridiandb/hexad/pkg/events"
	"github.com/meridiandb/hexad/pkg/ferrors"
	hexadlog "github.com/meridiandb/hexad/pkg/log"
	"github.com/meridiandb/hexad/pkg/metrics"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/wal"
)

// publish sends an event if this node has an Events broker wired, and is a
// no-op otherwise.
func (n *Node) publish(typ events.EventType, message string) {
	if n.Events == nil {
		return
	}
	n.Events.Publish(&events.Event{Type: typ, Message: message, Metadata: map[string]string{"node_id": n.id}})
}

type rvRequest struct {
	args  RequestVoteArgs
	reply chan RequestVoteReply
}

type aeRequest struct {
	args  AppendEntriesArgs
	reply chan AppendEntriesReply
}

// ProposeResult is what a client proposal resolves to once its entry is
// either committed and applied, or abandoned (e.g. by a leader step-down).
type ProposeResult struct {
	Index    uint64
	Registry registry.Registry
	Err      error
}

type proposeRequest struct {
	command registry.Command
	reply   chan ProposeResult
}

// Node is one member of the Raft cluster replicating a Registry. All of
// its mutable state is owned by the goroutine running Run; every other
// method communicates with that goroutine over a channel.
type Node struct {
	id    string
	peers []string

	transport Transport
	store     *wal.WAL
	machine   *registry.Machine
	cfg       Config

	// Persistent state (durable via store before any RPC reply).
	currentTerm uint64
	votedFor    string

	// Log state. log holds entries with Index > snapshotIndex, in order;
	// the snapshot itself covers everything up to and including
	// snapshotIndex/snapshotTerm.
	log           []wal.Entry
	snapshotIndex uint64
	snapshotTerm  uint64

	// Volatile state on all servers.
	role        Role
	leaderID    string
	commitIndex uint64
	lastApplied uint64
	appliedReg  registry.Registry

	// Volatile state on leaders, reset on election.
	nextIndex  map[string]uint64
	matchIndex map[string]uint64
	pending    map[uint64]chan ProposeResult

	electionResetAt time.Time
	electionTimeout time.Duration

	requestVoteCh   chan rvRequest
	appendEntriesCh chan aeRequest
	proposeCh       chan proposeRequest
	voteResultCh    chan voteResult
	appendResultCh  chan appendResult
	diagnosticsCh   chan chan Diagnostics
	registryCh      chan chan registry.Registry
	stopCh          chan struct{}
	rng             *rand.Rand

	// Events is an optional sink for leader-election lifecycle notices. A
	// nil Events is silently skipped, so a node that doesn't care about
	// them pays no cost.
	Events *events.Broker
}

// New constructs a Node, recovering its durable state and log from store.
func New(id string, peers []string, transport Transport, store *wal.WAL, machine *registry.Machine, cfg Config) (*Node, error) {
	recovered, err := wal.Recover(store.Dir())
	if err != nil {
		return nil, err
	}

	n := &Node{
		id:              id,
		peers:           peers,
		transport:       transport,
		store:           store,
		machine:         machine,
		cfg:             cfg,
		currentTerm:     recovered.DurableState.CurrentTerm,
		votedFor:        recovered.DurableState.VotedFor,
		log:             recovered.Entries,
		snapshotIndex:   recovered.SnapshotIndex,
		snapshotTerm:    recovered.SnapshotTerm,
		appliedReg:      recovered.Registry,
		commitIndex:     recovered.SnapshotIndex,
		lastApplied:     recovered.SnapshotIndex,
		role:            Follower,
		requestVoteCh:   make(chan rvRequest),
		appendEntriesCh: make(chan aeRequest),
		proposeCh:       make(chan proposeRequest),
		voteResultCh:    make(chan voteResult, 1),
		appendResultCh:  make(chan appendResult, len(peers)+1),
		diagnosticsCh:   make(chan chan Diagnostics),
		registryCh:      make(chan chan registry.Registry),
		stopCh:          make(chan struct{}),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(hashID(id)))),
	}
	return n, nil
}

func hashID(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Run drives the node's single-actor event loop until ctx is cancelled or
// Stop is called. It must run in its own goroutine.
func (n *Node) Run(ctx context.Context) {
	n.resetElectionTimer()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	defer n.failPendingProposals("node stopped before this proposal committed")

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case req := <-n.requestVoteCh:
			req.reply <- n.handleRequestVote(req.args)
		case req := <-n.appendEntriesCh:
			req.reply <- n.handleAppendEntries(req.args)
		case req := <-n.proposeCh:
			n.handlePropose(req)
		case vr := <-n.voteResultCh:
			n.handleVoteResult(vr)
		case ar := <-n.appendResultCh:
			n.handleAppendResult(ar)
		case reply := <-n.diagnosticsCh:
			reply <- n.diagnostics()
		case reply := <-n.registryCh:
			reply <- n.appliedReg
		case <-ticker.C:
			n.tick()
		}
	}
}

// Stop ends the node's event loop.
func (n *Node) Stop() {
	close(n.stopCh)
}

func (n *Node) tick() {
	now := time.Now()
	if n.role == Leader {
		if now.Sub(n.electionResetAt) >= n.cfg.HeartbeatInterval {
			n.electionResetAt = now
			n.sendHeartbeats()
		}
		return
	}
	if now.Sub(n.electionResetAt) >= n.electionTimeout {
		n.startElection()
	}
}

func (n *Node) resetElectionTimer() {
	span := n.cfg.ElectionTimeoutMax - n.cfg.ElectionTimeoutMin
	n.electionTimeout = n.cfg.ElectionTimeoutMin
	if span > 0 {
		n.electionTimeout += time.Duration(n.rng.Int63n(int64(span)))
	}
	n.electionResetAt = time.Now()
}

// RequestVote handles an incoming RequestVote RPC, marshalling it onto the
// event loop and blocking until the loop has processed it.
func (n *Node) RequestVote(args RequestVoteArgs) RequestVoteReply {
	reply := make(chan RequestVoteReply, 1)
	n.requestVoteCh <- rvRequest{args: args, reply: reply}
	return <-reply
}

// AppendEntries handles an incoming AppendEntries RPC the same way.
func (n *Node) AppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	reply := make(chan AppendEntriesReply, 1)
	n.appendEntriesCh <- aeRequest{args: args, reply: reply}
	return <-reply
}

// Propose submits command to the cluster. If this node is not the leader
// it fails fast with ferrors.KindNotLeader. Otherwise it blocks until the
// entry is committed and applied, or ctx is cancelled.
func (n *Node) Propose(ctx context.Context, command registry.Command) ProposeResult {
	reply := make(chan ProposeResult, 1)
	select {
	case n.proposeCh <- proposeRequest{command: command, reply: reply}:
	case <-ctx.Done():
		return ProposeResult{Err: ctx.Err()}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return ProposeResult{Err: ctx.Err()}
	}
}

func (n *Node) lastLogIndex() uint64 {
	return n.snapshotIndex + uint64(len(n.log))
}

func (n *Node) lastLogTerm() uint64 {
	if len(n.log) == 0 {
		return n.snapshotTerm
	}
	return n.log[len(n.log)-1].Term
}

// termAt returns the term of the entry at index, and whether that index is
// still resolvable (not compacted away by a snapshot).
func (n *Node) termAt(index uint64) (uint64, bool) {
	if index == n.snapshotIndex {
		return n.snapshotTerm, true
	}
	if index < n.snapshotIndex || index > n.lastLogIndex() {
		return 0, false
	}
	return n.log[index-n.snapshotIndex-1].Term, true
}

func (n *Node) entriesFrom(index uint64) []wal.Entry {
	if index <= n.snapshotIndex {
		return n.log
	}
	offset := index - n.snapshotIndex - 1
	if offset >= uint64(len(n.log)) {
		return nil
	}
	return n.log[offset:]
}

func (n *Node) setTerm(term uint64) {
	if term > n.currentTerm {
		wasLeader := n.role == Leader
		n.currentTerm = term
		n.votedFor = ""
		n.role = Follower
		if err := n.persistDurableState(); err != nil {
			hexadlog.Warn("persist term: " + err.Error())
		}
		metrics.RaftTerm.Set(float64(term))
		if wasLeader {
			n.publish(events.EventLeaderStepDown, n.id+" stepped down")
			n.failPendingProposals(n.id + " stepped down before this proposal committed")
		}
	}
}

// failPendingProposals resolves every proposal still awaiting commit on
// this node with KindTermChanged: a stepdown means a different leader's
// log may overwrite this node's uncommitted tail before those entries ever
// commit, and a shutdown means no one will ever finish applying them
// (spec §8 scenario 4).
func (n *Node) failPendingProposals(message string) {
	for index, ch := range n.pending {
		ch <- ProposeResult{Index: index, Err: ferrors.New(ferrors.KindTermChanged, message)}
		delete(n.pending, index)
	}
}

func (n *Node) persistDurableState() error {
	return n.store.SaveDurableState(wal.DurableState{CurrentTerm: n.currentTerm, VotedFor: n.votedFor})
}

func (n *Node) isLeader() bool {
	return n.role == Leader
}

// Diagnostics reports a point-in-time snapshot of this node's Raft state,
// for the node's own status endpoint and for tests.
type Diagnostics struct {
	ID          string
	Role        Role
	Term        uint64
	LeaderID    string
	CommitIndex uint64
	LastApplied uint64
	LogLength   uint64
}

func (n *Node) diagnostics() Diagnostics {
	return Diagnostics{
		ID:          n.id,
		Role:        n.role,
		Term:        n.currentTerm,
		LeaderID:    n.leaderID,
		CommitIndex: n.commitIndex,
		LastApplied: n.lastApplied,
		LogLength:   n.lastLogIndex(),
	}
}
