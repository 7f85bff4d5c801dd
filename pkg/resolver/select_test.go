package resolver

import (
	"testing"

	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
)

func newReg(backends ...*registry.Backend) registry.Registry {
	reg := registry.Empty()
	for _, b := range backends {
		reg.Stores[b.StoreID] = b
	}
	return reg
}

func TestSelectPeersFiltersByPattern(t *testing.T) {
	reg := newReg(
		&registry.Backend{StoreID: "vec-1", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1},
		&registry.Backend{StoreID: "doc-1", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1},
	)

	selected, excluded := selectPeers(reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "vec-*", types.DriftTolerate, DefaultStrictTrustThreshold)

	assert.Len(t, selected, 1)
	assert.Equal(t, "vec-1", selected[0].StoreID)
	assert.Len(t, excluded, 1)
	assert.Equal(t, ExcludedPatternMismatch, excluded[0].Reason)
}

func TestSelectPeersFiltersByModality(t *testing.T) {
	reg := newReg(
		&registry.Backend{StoreID: "vec-1", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 1},
		&registry.Backend{StoreID: "graph-1", Modalities: types.NewModalitySet(types.ModalityGraph), TrustLevel: 1},
	)

	selected, excluded := selectPeers(reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, DefaultStrictTrustThreshold)

	assert.Len(t, selected, 1)
	assert.Equal(t, "vec-1", selected[0].StoreID)
	assert.Equal(t, ExcludedModalityMismatch, excluded[0].Reason)
}

func TestSelectPeersDriftStrictExcludesLowTrust(t *testing.T) {
	reg := newReg(
		&registry.Backend{StoreID: "trusted", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 0.9},
		&registry.Backend{StoreID: "drifted", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 0.5},
	)

	selected, excluded := selectPeers(reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftStrict, DefaultStrictTrustThreshold)

	assert.Len(t, selected, 1)
	assert.Equal(t, "trusted", selected[0].StoreID)
	assert.Equal(t, ExcludedTrustBelowStrict, excluded[0].Reason)
}

func TestSelectPeersDriftTolerateIncludesLowTrust(t *testing.T) {
	reg := newReg(
		&registry.Backend{StoreID: "drifted", Modalities: types.NewModalitySet(types.ModalityVector), TrustLevel: 0.4},
	)

	selected, excluded := selectPeers(reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityVector}}, "*", types.DriftTolerate, DefaultStrictTrustThreshold)

	assert.Len(t, selected, 1)
	assert.Empty(t, excluded)
}

func TestSelectPeersRequiresEveryRequestedModality(t *testing.T) {
	reg := newReg(
		&registry.Backend{StoreID: "doc-only", Modalities: types.NewModalitySet(types.ModalityDocument), TrustLevel: 1},
		&registry.Backend{StoreID: "doc-and-vector", Modalities: types.NewModalitySet(types.ModalityDocument, types.ModalityVector), TrustLevel: 1},
	)

	selected, excluded := selectPeers(reg, types.NeutralQuery{Modalities: []types.Modality{types.ModalityDocument, types.ModalityVector}}, "*", types.DriftTolerate, DefaultStrictTrustThreshold)

	assert.Len(t, selected, 1)
	assert.Equal(t, "doc-and-vector", selected[0].StoreID)
	assert.Len(t, excluded, 1)
	assert.Equal(t, "doc-only", excluded[0].StoreID)
	assert.Equal(t, ExcludedModalityMismatch, excluded[0].Reason)
}

func TestSelectPeersNoModalitiesRequestedMatchesAll(t *testing.T) {
	reg := newReg(&registry.Backend{StoreID: "any", Modalities: types.NewModalitySet(types.ModalityGraph), TrustLevel: 1})

	selected, _ := selectPeers(reg, types.NeutralQuery{}, "*", types.DriftTolerate, DefaultStrictTrustThreshold)
	assert.Len(t, selected, 1)
}
