// Package transport carries Raft RPCs between nodes over HTTP, and exposes
// the client proposal endpoint a cluster member's CLI or resolver talks to.
// It implements consensus.Transport; the wire format is JSON rather than
// the teacher's protobuf/gRPC stack, since the Raft RPCs here carry small,
// schema-stable payloads (vote and append-entries args) that don't need
// codegen, and bundling a vendored .pb.go without protoc available isn't an
// option.
package transport
