package consensus

import (
	"context"

	hexadlog "github.com/meridiandb/hexad/pkg/log"
)

// handleRequestVote implements the RequestVote RPC receiver, Raft paper §5.2.
func (n *Node) handleRequestVote(args RequestVoteArgs) RequestVoteReply {
	if args.Term > n.currentTerm {
		n.setTerm(args.Term)
	}
	if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	alreadyVoted := n.votedFor != "" && n.votedFor != args.CandidateID
	logOK := args.LastLogTerm > n.lastLogTerm() ||
		(args.LastLogTerm == n.lastLogTerm() && args.LastLogIndex >= n.lastLogIndex())

	if alreadyVoted || !logOK {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	n.votedFor = args.CandidateID
	if err := n.persistDurableState(); err != nil {
		hexadlog.Warn("persist vote: " + err.Error())
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	n.resetElectionTimer()
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: true}
}

// startElection transitions this node to Candidate and solicits votes from
// every peer concurrently; becomeLeader is called as soon as a majority,
// including its own vote, has been granted for the term it started with.
func (n *Node) startElection() {
	n.role = Candidate
	n.setTermForElection(n.currentTerm + 1)
	n.votedFor = n.id
	if err := n.persistDurableState(); err != nil {
		hexadlog.Warn("persist candidacy: " + err.Error())
		n.role = Follower
		return
	}
	n.resetElectionTimer()

	electionTerm := n.currentTerm
	args := RequestVoteArgs{
		Term:         electionTerm,
		CandidateID:  n.id,
		LastLogIndex: n.lastLogIndex(),
		LastLogTerm:  n.lastLogTerm(),
	}

	votes := 1
	needed := (len(n.peers)+1)/2 + 1
	replies := make(chan RequestVoteReply, len(n.peers))

	for _, peer := range n.peers {
		peer := peer
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RPCTimeout)
			defer cancel()
			reply, err := n.transport.SendRequestVote(ctx, peer, args)
			if err != nil {
				return
			}
			select {
			case replies <- reply:
			default:
			}
		}()
	}

	go n.collectVotes(electionTerm, votes, needed, replies, len(n.peers))
}

// collectVotes runs outside the event loop (it only reads the term/args it
// was given and otherwise waits on RPC replies), so it never touches node
// state directly: it posts its conclusion on voteResultCh, a channel drained
// by the event loop's select.
func (n *Node) collectVotes(term uint64, votes, needed int, replies chan RequestVoteReply, totalPeers int) {
	received := 0
	granted := votes
	for received < totalPeers {
		reply, ok := <-replies
		if !ok {
			return
		}
		received++
		if reply.Term > term {
			n.voteResultCh <- voteResult{term: term, higherTerm: reply.Term}
			return
		}
		if reply.VoteGranted {
			granted++
		}
		if granted >= needed {
			n.voteResultCh <- voteResult{term: term, won: true}
			return
		}
	}
	n.voteResultCh <- voteResult{term: term, won: granted >= needed}
}

type voteResult struct {
	term       uint64
	won        bool
	higherTerm uint64
}

// handleVoteResult applies the outcome of an election this node started,
// discarding it if the node has since moved on to a different term or given
// up candidacy (e.g. because it heard from a new leader in the meantime).
func (n *Node) handleVoteResult(vr voteResult) {
	if n.role != Candidate || n.currentTerm != vr.term {
		return
	}
	if vr.higherTerm > n.currentTerm {
		n.setTerm(vr.higherTerm)
		return
	}
	if vr.won {
		n.becomeLeader()
		return
	}
	// Lost the election without seeing a higher term: stay Candidate and
	// let the election timeout fire a retry with a fresh random backoff.
}

// setTermForElection bumps currentTerm for a self-initiated election; unlike
// setTerm it does not require term to already be larger (a candidate always
// advances by exactly one) and does not reset votedFor, since the caller
// immediately votes for itself.
func (n *Node) setTermForElection(term uint64) {
	n.currentTerm = term
	n.role = Candidate
}
