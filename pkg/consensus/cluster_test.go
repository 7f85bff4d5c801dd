package consensus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/meridiandb/hexad/pkg/wal"
	"github.com/stretchr/testify/require"
)

// fixedClipper is the same fake registry.ModalityClipper used by the
// registry package's own tests, so register_store payloads in these
// scenarios resolve modalities without pulling in a real adapter.
type fixedClipper struct {
	modalities types.ModalitySet
	ok         bool
}

func (f fixedClipper) SupportedModalities(adapterType string, config map[string]string, extensions []string) (types.ModalitySet, bool) {
	return f.modalities, f.ok
}

// memDirectory is an in-process stand-in for pkg/transport.Directory: a
// shared map of node ID to *Node that every test node's memTransport
// dials into directly, plus a set of IDs currently cut off from the rest
// of the cluster so scenario tests can simulate a network partition or a
// killed process without opening a single real socket.
type memDirectory struct {
	mu          sync.RWMutex
	nodes       map[string]*Node
	unreachable map[string]bool
}

func newMemDirectory() *memDirectory {
	return &memDirectory{nodes: make(map[string]*Node), unreachable: make(map[string]bool)}
}

func (d *memDirectory) register(id string, n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[id] = n
}

// setUnreachable marks id as unreachable (partitioned or killed) in both
// directions: neither sending to it nor it sending out will succeed.
func (d *memDirectory) setUnreachable(id string, unreachable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unreachable[id] = unreachable
}

func (d *memDirectory) dial(from, to string) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.unreachable[from] || d.unreachable[to] {
		return nil, false
	}
	n, ok := d.nodes[to]
	return n, ok
}

type memTransport struct {
	dir  *memDirectory
	self string
}

func (t *memTransport) SendRequestVote(ctx context.Context, peerID string, args RequestVoteArgs) (RequestVoteReply, error) {
	peer, ok := t.dir.dial(t.self, peerID)
	if !ok {
		return RequestVoteReply{}, ferrors.New(ferrors.KindUnreachable, "peer unreachable")
	}
	replyCh := make(chan RequestVoteReply, 1)
	go func() { replyCh <- peer.RequestVote(args) }()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return RequestVoteReply{}, ctx.Err()
	}
}

func (t *memTransport) SendAppendEntries(ctx context.Context, peerID string, args AppendEntriesArgs) (AppendEntriesReply, error) {
	peer, ok := t.dir.dial(t.self, peerID)
	if !ok {
		return AppendEntriesReply{}, ferrors.New(ferrors.KindUnreachable, "peer unreachable")
	}
	replyCh := make(chan AppendEntriesReply, 1)
	go func() { replyCh <- peer.AppendEntries(args) }()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return AppendEntriesReply{}, ctx.Err()
	}
}

// testCluster drives N nodes, each with its own temp-dir WAL, a shared
// memDirectory, and fast timers so a leader election settles in tens of
// milliseconds instead of the spec's production 150-300ms bounds.
type testCluster struct {
	t     *testing.T
	dir   *memDirectory
	ids   []string
	nodes map[string]*Node
	ctx   context.Context
	stop  context.CancelFunc
}

func fastConfig() Config {
	return Config{
		ElectionTimeoutMin: 30 * time.Millisecond,
		ElectionTimeoutMax: 60 * time.Millisecond,
		HeartbeatInterval:  10 * time.Millisecond,
		RPCTimeout:         200 * time.Millisecond,
	}
}

func newTestCluster(t *testing.T, n int) *testCluster {
	t.Helper()
	dir := newMemDirectory()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i+1)
	}

	tc := &testCluster{t: t, dir: dir, ids: ids, nodes: make(map[string]*Node, n)}
	tc.ctx, tc.stop = context.WithCancel(context.Background())

	clipper := fixedClipper{modalities: types.NewModalitySet(types.ModalityGraph, types.ModalityVector), ok: true}

	for _, id := range ids {
		peers := make([]string, 0, n-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		store, err := wal.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })

		machine := registry.NewMachine(clipper)
		node, err := New(id, peers, &memTransport{dir: dir, self: id}, store, machine, fastConfig())
		require.NoError(t, err)

		tc.nodes[id] = node
		dir.register(id, node)
	}

	for _, node := range tc.nodes {
		go node.Run(tc.ctx)
	}
	t.Cleanup(func() {
		tc.stop()
		for _, node := range tc.nodes {
			node.Stop()
		}
	})
	return tc
}

// leader polls every node's diagnostics until exactly one reports
// role=leader, returning that node's ID, or fails the test after timeout.
func (tc *testCluster) leader(timeout time.Duration) string {
	tc.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var leaders []string
		for id, node := range tc.nodes {
			if node.Status().Role == Leader {
				leaders = append(leaders, id)
			}
		}
		if len(leaders) == 1 {
			return leaders[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	tc.t.Fatalf("no single leader emerged within %s", timeout)
	return ""
}

// kill marks id unreachable in both directions (the same cut as a two-way
// partition) and stops its event loop, simulating a crashed process whose
// peers can no longer reach it and who can no longer reach anyone either.
func (tc *testCluster) kill(id string) {
	tc.dir.setUnreachable(id, true)
	tc.nodes[id].Stop()
}
