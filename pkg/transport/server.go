package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/meridiandb/hexad/pkg/consensus"
	"github.com/meridiandb/hexad/pkg/ferrors"
	hexadlog "github.com/meridiandb/hexad/pkg/log"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/resolver"
	"github.com/meridiandb/hexad/pkg/types"
)

// queryRequest is the body /query expects: a NeutralQuery plus the
// store-selection and drift-policy parameters Resolve needs that aren't
// part of the query itself.
type queryRequest struct {
	Query        types.NeutralQuery `json:"query"`
	StorePattern string             `json:"store_pattern"`
	DriftPolicy  types.DriftPolicy  `json:"drift_policy"`
	Options      types.QueryOptions `json:"options"`
}

// raftNode is the subset of *consensus.Node the HTTP server needs, kept
// narrow so tests can exercise Server against a fake.
type raftNode interface {
	RequestVote(args consensus.RequestVoteArgs) consensus.RequestVoteReply
	AppendEntries(args consensus.AppendEntriesArgs) consensus.AppendEntriesReply
	Propose(ctx context.Context, command registry.Command) consensus.ProposeResult
	Status() consensus.Diagnostics
}

// registrySource supplies the Registry snapshot a query resolves against.
type registrySource interface {
	Registry() registry.Registry
}

// Server exposes a Node's Raft RPCs, client proposal endpoint, and the
// federation resolver's query endpoint over HTTP.
type Server struct {
	node       raftNode
	registry   registrySource
	resolver   *resolver.Resolver
	httpServer *http.Server
}

// NewServer builds a Server bound to addr, wrapping node. reg and res may
// be nil, in which case /query responds 503 — used by nodes that only
// participate in consensus and don't serve federated reads.
func NewServer(node raftNode, addr string, reg registrySource, res *resolver.Resolver) *Server {
	s := &Server{node: node, registry: reg, resolver: res}
	mux := http.NewServeMux()
	mux.HandleFunc("/raft/vote", s.handleVote)
	mux.HandleFunc("/raft/append", s.handleAppend)
	mux.HandleFunc("/raft/propose", s.handlePropose)
	mux.HandleFunc("/raft/status", s.handleStatus)
	mux.HandleFunc("/query", s.handleQuery)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start serves until the process exits or Stop is called; it blocks like
// net/http.Server.ListenAndServe.
func (s *Server) Start() error {
	hexadlog.Info("raft transport listening on " + s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var args consensus.RequestVoteArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, s.node.RequestVote(args))
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var args consensus.AppendEntriesArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, s.node.AppendEntries(args))
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var command registry.Command
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result := s.node.Propose(ctx, command)
	if result.Err != nil {
		status := http.StatusInternalServerError
		if kind, ok := ferrors.KindOf(result.Err); ok && kind == ferrors.KindNotLeader {
			status = http.StatusMisdirectedRequest
		}
		writeError(w, status, result.Err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Status())
}

// queryResponse mirrors resolver.Result but renders PeerErrors as strings,
// since error doesn't implement json.Marshaler.
type queryResponse struct {
	Results        []types.NormalisedResult `json:"results"`
	StoresQueried  []string                 `json:"stores_queried"`
	StoresExcluded []resolver.Exclusion     `json:"stores_excluded"`
	PeerErrors     map[string]string        `json:"peer_errors"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil || s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, ferrors.New(ferrors.KindUnreachable, "node does not serve federated queries"))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reg := s.registry.Registry()
	result := s.resolver.Resolve(r.Context(), reg, req.Query, req.StorePattern, req.DriftPolicy, req.Options)

	resp := queryResponse{
		Results:        result.Results,
		StoresQueried:  result.StoresQueried,
		StoresExcluded: result.StoresExcluded,
		PeerErrors:     make(map[string]string, len(result.PeerErrors)),
	}
	for store, err := range result.PeerErrors {
		resp.PeerErrors[store] = err.Error()
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
