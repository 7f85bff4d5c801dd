// Package resolver implements the federation resolver: peer selection,
// bounded concurrent fan-out across heterogeneous backend adapters, and a
// deterministic merge of their results into one ranked list.
package resolver

import (
	"context"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/metrics"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
)

// DefaultPerPeerTimeout bounds a single adapter's connect+query+translate
// when a query does not override it via QueryOptions.
const DefaultPerPeerTimeout = 2 * time.Second

// Resolver dispatches NeutralQuerys across the stores a Registry snapshot
// names, using the adapters bound into Adapters to actually reach them.
type Resolver struct {
	Adapters *adapter.Registry

	// StrictTrustThreshold is the minimum trust_level a store must carry
	// for DriftStrict to include it. Defaults to DefaultStrictTrustThreshold.
	StrictTrustThreshold float64
}

// New constructs a Resolver bound to the given adapter registry.
func New(adapters *adapter.Registry) *Resolver {
	return &Resolver{Adapters: adapters, StrictTrustThreshold: DefaultStrictTrustThreshold}
}

// Result is the outcome of one Resolve call: the merged, ranked results
// plus which stores were queried or excluded and why, for observability.
type Result struct {
	Results       []types.NormalisedResult
	StoresQueried []string
	StoresExcluded []Exclusion
	PeerErrors    map[string]error
}

// Resolve selects eligible peers from reg for q, queries them concurrently
// under perPeerTimeout each, and returns their merged results. It never
// returns an error itself for partial peer failure — a peer that errors or
// times out is simply absent from Results and present in PeerErrors; the
// query succeeds as long as selection itself was well-formed.
func (r *Resolver) Resolve(ctx context.Context, reg registry.Registry, q types.NeutralQuery, storePattern string, driftPolicy types.DriftPolicy, opts types.QueryOptions) Result {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResolverQueryDuration)
	metrics.ResolverQueriesTotal.WithLabelValues(string(driftPolicy)).Inc()

	strictTrustThreshold := r.StrictTrustThreshold
	if strictTrustThreshold == 0 {
		strictTrustThreshold = DefaultStrictTrustThreshold
	}

	peers, excluded := selectPeers(reg, q, storePattern, driftPolicy, strictTrustThreshold)
	metrics.ResolverPeersQueried.Observe(float64(len(peers)))

	perPeerTimeout := DefaultPerPeerTimeout
	if opts.PerPeerTimeoutMS > 0 {
		perPeerTimeout = time.Duration(opts.PerPeerTimeoutMS) * time.Millisecond
	}

	onQuery := func(adapterType string, elapsed time.Duration) {
		metrics.AdapterQueryDuration.WithLabelValues(adapterType).Observe(elapsed.Seconds())
	}

	outcomes := fanOut(ctx, r.Adapters, peers, q, perPeerTimeout, strictTrustThreshold, onQuery)

	result := Result{
		StoresExcluded: excluded,
		PeerErrors:     make(map[string]error),
	}
	// stores_queried is every peer selection dispatched to (spec §4.3 step
	// 5), regardless of whether its query ultimately succeeded.
	for _, peer := range peers {
		result.StoresQueried = append(result.StoresQueried, peer.StoreID)
	}
	perPeer := make([][]types.NormalisedResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			metrics.ResolverPeerErrorsTotal.WithLabelValues(o.storeID).Inc()
			result.PeerErrors[o.storeID] = o.err
			continue
		}
		perPeer = append(perPeer, o.results)
	}

	result.Results = mergeResults(perPeer)
	return result
}
