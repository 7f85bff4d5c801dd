package consensus

import "context"

// Transport is how a Node reaches its peers. pkg/transport implements this
// over HTTP/JSON; package tests use an in-process fake so the protocol
// logic can be exercised without a network.
type Transport interface {
	SendRequestVote(ctx context.Context, peerID string, args RequestVoteArgs) (RequestVoteReply, error)
	SendAppendEntries(ctx context.Context, peerID string, args AppendEntriesArgs) (AppendEntriesReply, error)
}
