package consensus

import "github.com/meridiandb/hexad/pkg/registry"

// Registry returns the Registry state this node has applied so far, for
// read-only callers such as the resolver and the metrics collector. It does
// not distinguish leader from follower: followers serve reads from their
// own applied state, which may lag the leader by the replication delay.
func (n *Node) Registry() registry.Registry {
	reply := make(chan registry.Registry, 1)
	select {
	case n.registryCh <- reply:
		return <-reply
	case <-n.stopCh:
		return registry.Empty()
	}
}

// Status returns a point-in-time snapshot of this node's Raft state. Like
// RequestVote and AppendEntries, it crosses into the event loop over a
// channel rather than reading Node's fields directly, since those fields
// are owned exclusively by the goroutine running Run.
func (n *Node) Status() Diagnostics {
	reply := make(chan Diagnostics, 1)
	select {
	case n.diagnosticsCh <- reply:
		return <-reply
	case <-n.stopCh:
		return Diagnostics{ID: n.id}
	}
}
