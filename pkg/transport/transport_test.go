package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/consensus"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/resolver"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrySource struct {
	reg registry.Registry
}

func (f *fakeRegistrySource) Registry() registry.Registry {
	return f.reg
}

type fakeNode struct {
	voteReply   consensus.RequestVoteReply
	appendReply consensus.AppendEntriesReply
	proposeRes  consensus.ProposeResult
	status      consensus.Diagnostics
}

func (f *fakeNode) RequestVote(args consensus.RequestVoteArgs) consensus.RequestVoteReply {
	return f.voteReply
}

func (f *fakeNode) AppendEntries(args consensus.AppendEntriesArgs) consensus.AppendEntriesReply {
	return f.appendReply
}

func (f *fakeNode) Propose(ctx context.Context, command registry.Command) consensus.ProposeResult {
	return f.proposeRes
}

func (f *fakeNode) Status() consensus.Diagnostics {
	return f.status
}

func TestHTTPTransportRoundTripsRequestVote(t *testing.T) {
	node := &fakeNode{voteReply: consensus.RequestVoteReply{Term: 4, VoteGranted: true}}
	srv := httptest.NewServer(NewServer(node, "", nil, nil).httpServer.Handler)
	defer srv.Close()

	dir := NewDirectory(map[string]string{"peer-1": srv.URL})
	client := NewHTTPTransport(dir, srv.Client())

	reply, err := client.SendRequestVote(context.Background(), "peer-1", consensus.RequestVoteArgs{Term: 4, CandidateID: "peer-2"})
	require.NoError(t, err)
	assert.True(t, reply.VoteGranted)
	assert.Equal(t, uint64(4), reply.Term)
}

func TestHTTPTransportRoundTripsAppendEntries(t *testing.T) {
	node := &fakeNode{appendReply: consensus.AppendEntriesReply{Term: 2, Success: true}}
	srv := httptest.NewServer(NewServer(node, "", nil, nil).httpServer.Handler)
	defer srv.Close()

	dir := NewDirectory(map[string]string{"peer-1": srv.URL})
	client := NewHTTPTransport(dir, srv.Client())

	reply, err := client.SendAppendEntries(context.Background(), "peer-1", consensus.AppendEntriesArgs{Term: 2, LeaderID: "peer-2"})
	require.NoError(t, err)
	assert.True(t, reply.Success)
}

func TestHTTPTransportUnknownPeerIsConnectionRefused(t *testing.T) {
	dir := NewDirectory(nil)
	client := NewHTTPTransport(dir, nil)

	_, err := client.SendRequestVote(context.Background(), "ghost", consensus.RequestVoteArgs{})
	require.Error(t, err)
}

func TestHandleQueryWithoutResolverIsServiceUnavailable(t *testing.T) {
	node := &fakeNode{}
	srv := httptest.NewServer(NewServer(node, "", nil, nil).httpServer.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/query", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleQueryResolvesAgainstEmptyRegistry(t *testing.T) {
	node := &fakeNode{}
	regSrc := &fakeRegistrySource{reg: registry.Empty()}
	res := resolver.New(adapter.NewRegistry())
	srv := httptest.NewServer(NewServer(node, "", regSrc, res).httpServer.Handler)
	defer srv.Close()

	body, err := json.Marshal(queryRequest{Query: types.NeutralQuery{}, StorePattern: "*"})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Results)
}
