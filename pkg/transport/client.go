package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridiandb/hexad/pkg/consensus"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/metrics"
)

// HTTPTransport implements consensus.Transport by POSTing JSON-encoded RPC
// args to a peer's /raft/vote or /raft/append endpoint.
type HTTPTransport struct {
	directory *Directory
	client    *http.Client
}

// NewHTTPTransport builds a transport resolving peer addresses through dir.
func NewHTTPTransport(dir *Directory, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{directory: dir, client: client}
}

func (t *HTTPTransport) SendRequestVote(ctx context.Context, peerID string, args consensus.RequestVoteArgs) (consensus.RequestVoteReply, error) {
	timer := metrics.NewTimer()
	var reply consensus.RequestVoteReply
	err := t.call(ctx, peerID, "/raft/vote", args, &reply)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TransportRPCTotal.WithLabelValues("request_vote", outcome).Inc()
	timer.ObserveDurationVec(metrics.TransportRPCDuration, "request_vote")
	return reply, err
}

func (t *HTTPTransport) SendAppendEntries(ctx context.Context, peerID string, args consensus.AppendEntriesArgs) (consensus.AppendEntriesReply, error) {
	timer := metrics.NewTimer()
	var reply consensus.AppendEntriesReply
	err := t.call(ctx, peerID, "/raft/append", args, &reply)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TransportRPCTotal.WithLabelValues("append_entries", outcome).Inc()
	timer.ObserveDurationVec(metrics.TransportRPCDuration, "append_entries")
	return reply, err
}

func (t *HTTPTransport) call(ctx context.Context, peerID, path string, body, out interface{}) error {
	baseURL, ok := t.directory.Resolve(peerID)
	if !ok {
		return ferrors.New(ferrors.KindConnectionRefused, fmt.Sprintf("no known address for peer %s", peerID))
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return ferrors.Wrap(ferrors.KindMalformedResponse, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, &buf)
	if err != nil {
		return ferrors.Wrap(ferrors.KindConnectionRefused, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ferrors.Wrap(ferrors.KindTimeout, "rpc deadline exceeded", err)
		}
		return ferrors.Wrap(ferrors.KindConnectionRefused, "rpc request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("peer %s returned status %d", peerID, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ferrors.Wrap(ferrors.KindMalformedResponse, "decode response", err)
	}
	return nil
}
