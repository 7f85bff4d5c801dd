package consensus

import (
	"encoding/json"

	"github.com/meridiandb/hexad/pkg/wal"
)

// Role is a node's current position in the Raft state machine.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a Role as its name rather than its underlying int, so
// a status response reads "leader" instead of "2".
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// RequestVoteArgs is the RequestVote RPC's request.
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteReply is the RequestVote RPC's response.
type RequestVoteReply struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC's request. A zero-length
// Entries is a heartbeat.
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []wal.Entry
	LeaderCommit uint64
}

// AppendEntriesReply is the AppendEntries RPC's response. ConflictIndex and
// ConflictTerm let the leader back off its nextIndex for this follower in
// one round trip instead of one entry at a time, per the optimisation
// described in the Raft paper's §5.3.
type AppendEntriesReply struct {
	Term          uint64
	Success       bool
	ConflictIndex uint64
	ConflictTerm  uint64
}
