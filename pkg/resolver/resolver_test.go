package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInstance struct {
	results []types.NormalisedResult
	err     error
	delay   time.Duration
}

func (s *stubInstance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	return adapter.HealthStatus{Healthy: true}, nil
}

func (s *stubInstance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubInstance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return raw.([]types.NormalisedResult), nil
}

func (s *stubInstance) Close() error { return nil }

type stubAdapter struct {
	instance *stubInstance
}

func (a stubAdapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	return a.instance, nil
}

func (a stubAdapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityVector)
}

func TestResolveMergesAcrossPeers(t *testing.T) {
	adapters := adapter.NewRegistry()
	adapters.Register("stub-fast", stubAdapter{instance: &stubInstance{results: []types.NormalisedResult{{SourceStore: "fast", HexadID: "h1", Score: 0.9}}}})
	adapters.Register("stub-slow", stubAdapter{instance: &stubInstance{results: []types.NormalisedResult{{SourceStore: "slow", HexadID: "h2", Score: 0.95}}}})

	reg := registry.Empty()
	reg.Stores["fast"] = &registry.Backend{StoreID: "fast", AdapterType: "stub-fast", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1}
	reg.Stores["slow"] = &registry.Backend{StoreID: "slow", AdapterType: "stub-slow", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1}

	r := New(adapters)
	result := r.Resolve(context.Background(), reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, types.QueryOptions{})

	require.Len(t, result.Results, 2)
	assert.Equal(t, "h2", result.Results[0].HexadID)
	assert.ElementsMatch(t, []string{"fast", "slow"}, result.StoresQueried)
	assert.Empty(t, result.PeerErrors)
}

func TestResolvePeerTimeoutIsExcludedNotFatal(t *testing.T) {
	adapters := adapter.NewRegistry()
	adapters.Register("stub-slow", stubAdapter{instance: &stubInstance{delay: 50 * time.Millisecond}})
	adapters.Register("stub-fast", stubAdapter{instance: &stubInstance{results: []types.NormalisedResult{{SourceStore: "fast", HexadID: "h1", Score: 0.5}}}})

	reg := registry.Empty()
	reg.Stores["slow"] = &registry.Backend{StoreID: "slow", AdapterType: "stub-slow", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1}
	reg.Stores["fast"] = &registry.Backend{StoreID: "fast", AdapterType: "stub-fast", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1}

	r := New(adapters)
	result := r.Resolve(context.Background(), reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, types.QueryOptions{PerPeerTimeoutMS: 5})

	require.Len(t, result.Results, 1)
	// Both peers were selected and dispatched to, even though "slow" timed
	// out: stores_queried names every peer a query was sent to, not only
	// the ones that answered in time.
	assert.ElementsMatch(t, []string{"fast", "slow"}, result.StoresQueried)
	assert.Contains(t, result.PeerErrors, "slow")
}

func TestResolveUnknownAdapterTypeIsPeerError(t *testing.T) {
	adapters := adapter.NewRegistry()
	reg := registry.Empty()
	reg.Stores["ghost"] = &registry.Backend{StoreID: "ghost", AdapterType: "nonexistent", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1}

	r := New(adapters)
	result := r.Resolve(context.Background(), reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, types.QueryOptions{})

	require.Contains(t, result.PeerErrors, "ghost")
	kind, ok := ferrors.KindOf(result.PeerErrors["ghost"])
	assert.True(t, ok)
	assert.Equal(t, ferrors.KindUnknownAdapter, kind)
}
