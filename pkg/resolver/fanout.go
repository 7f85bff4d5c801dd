package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
)

// peerOutcome is one peer's fan-out result, stored in that peer's slot of
// the slice fanOut returns so the caller can record per-peer metrics and
// errors even for peers that errored or timed out.
type peerOutcome struct {
	storeID string
	results []types.NormalisedResult
	err     error
}

// fanOut queries every selected peer concurrently, each bounded by its own
// context derived from ctx with the given per-peer timeout. It returns once
// every peer has either answered, errored, or timed out — there is no
// overall deadline beyond what ctx already carries.
func fanOut(ctx context.Context, adapters *adapter.Registry, peers []*registry.Backend, q types.NeutralQuery, perPeerTimeout time.Duration, strictTrustThreshold float64, onQuery func(adapterType string, elapsed time.Duration)) []peerOutcome {
	outcomes := make([]peerOutcome, len(peers))
	var wg sync.WaitGroup
	wg.Add(len(peers))

	for idx, peer := range peers {
		go func(idx int, peer *registry.Backend) {
			defer wg.Done()
			outcomes[idx] = queryOne(ctx, adapters, peer, q, perPeerTimeout, strictTrustThreshold, onQuery)
		}(idx, peer)
	}

	wg.Wait()
	return outcomes
}

func queryOne(ctx context.Context, adapters *adapter.Registry, peer *registry.Backend, q types.NeutralQuery, perPeerTimeout time.Duration, strictTrustThreshold float64, onQuery func(adapterType string, elapsed time.Duration)) peerOutcome {
	impl, ok := adapters.Get(peer.AdapterType)
	if !ok {
		return peerOutcome{storeID: peer.StoreID, err: unknownAdapterErr(peer)}
	}

	peerCtx, cancel := context.WithTimeout(ctx, perPeerTimeout)
	defer cancel()

	start := time.Now()
	instance, err := impl.Connect(peerCtx, peer.Endpoint, peer.AdapterConfig, peer.Extensions)
	if err != nil {
		return peerOutcome{storeID: peer.StoreID, err: err}
	}
	defer instance.Close()

	raw, err := instance.Query(peerCtx, q)
	if onQuery != nil {
		onQuery(peer.AdapterType, time.Since(start))
	}
	if err != nil {
		return peerOutcome{storeID: peer.StoreID, err: err}
	}

	results, err := instance.TranslateResults(peer.StoreID, raw)
	if err != nil {
		return peerOutcome{storeID: peer.StoreID, err: err}
	}

	responseTimeMS := time.Since(start).Milliseconds()
	for i := range results {
		results[i].ResponseTimeMS = responseTimeMS
		if peer.TrustLevel < strictTrustThreshold {
			results[i].Drifted = true
		}
	}

	return peerOutcome{storeID: peer.StoreID, results: results}
}

func unknownAdapterErr(peer *registry.Backend) error {
	return ferrors.New(ferrors.KindUnknownAdapter, fmt.Sprintf("resolver: no adapter registered for type %q (store %s)", peer.AdapterType, peer.StoreID))
}
