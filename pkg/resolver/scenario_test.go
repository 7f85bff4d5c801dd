package resolver

import (
	"context"
	"testing"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/adapter/documentstore"
	"github.com/meridiandb/hexad/pkg/adapter/postgresql"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioAdapterMediatedFanOut(t *testing.T) {
	adapters := adapter.NewRegistry()
	adapters.Register("stub-doc", stubAdapter{instance: &stubInstance{results: []types.NormalisedResult{{SourceStore: "es-1", HexadID: "h1", Score: 0.8}}}})
	adapters.Register("stub-graph-doc", stubAdapter{instance: &stubInstance{results: []types.NormalisedResult{{SourceStore: "arango-1", HexadID: "h2", Score: 0.7}}}})

	reg := registry.Empty()
	reg.Stores["es-1"] = &registry.Backend{StoreID: "es-1", AdapterType: "stub-doc", Modalities: types.NewModalitySet(types.ModalityDocument), TrustLevel: 1}
	reg.Stores["arango-1"] = &registry.Backend{StoreID: "arango-1", AdapterType: "stub-graph-doc", Modalities: types.NewModalitySet(types.ModalityGraph, types.ModalityDocument), TrustLevel: 1}

	r := New(adapters)

	t.Run("document query reaches both peers", func(t *testing.T) {
		result := r.Resolve(context.Background(), reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityDocument}}, "*", types.DriftTolerate, types.QueryOptions{})
		assert.ElementsMatch(t, []string{"es-1", "arango-1"}, result.StoresQueried)
		assert.Empty(t, result.StoresExcluded)
	})

	t.Run("vector query excludes the peer that never declared it", func(t *testing.T) {
		result := r.Resolve(context.Background(), reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, types.QueryOptions{})
		assert.Empty(t, result.StoresQueried)
		require.Len(t, result.StoresExcluded, 2)
		for _, ex := range result.StoresExcluded {
			assert.Equal(t, ExcludedModalityMismatch, ex.Reason)
		}
	})
}

// TestScenarioModalityClippingAtRegistration exercises register_store
// through the real postgresql adapter (rather than a fixedClipper fake),
// confirming the Machine/adapter.Registry wiring clips declared modalities
// the same way production startup does.
func TestScenarioModalityClippingAtRegistration(t *testing.T) {
	adapters := adapter.NewRegistry()
	adapters.Register(postgresql.Tag, postgresql.New("postgres"))
	adapters.Register(documentstore.Tag, documentstore.New())

	machine := registry.NewMachine(adapters)
	cmd, err := registry.NewCommand(registry.OpRegisterStore, registry.RegisterStorePayload{
		StoreID:            "pg-1",
		Endpoint:           "postgres://pg-1",
		AdapterType:        postgresql.Tag,
		Extensions:         []string{},
		DeclaredModalities: []string{"document", "vector", "spatial", "tensor"},
	})
	require.NoError(t, err)

	reg := machine.Apply(registry.Empty(), cmd, 0)

	backend := reg.Stores["pg-1"]
	require.NotNil(t, backend)
	assert.True(t, backend.Modalities.Contains(types.ModalityDocument))
	assert.False(t, backend.Modalities.Contains(types.ModalityVector))
	assert.False(t, backend.Modalities.Contains(types.ModalitySpatial))
	assert.False(t, backend.Modalities.Contains(types.ModalityTensor))
}
