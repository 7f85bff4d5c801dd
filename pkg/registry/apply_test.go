package registry

import (
	"testing"

	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClipper struct {
	modalities types.ModalitySet
	ok         bool
}

func (f fixedClipper) SupportedModalities(adapterType string, config map[string]string, extensions []string) (types.ModalitySet, bool) {
	return f.modalities, f.ok
}

func mustCommand(t *testing.T, op Op, payload interface{}) Command {
	t.Helper()
	cmd, err := NewCommand(op, payload)
	require.NoError(t, err)
	return cmd
}

func TestApplyRegisterStore(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()

	cmd := mustCommand(t, OpRegisterStore, RegisterStorePayload{
		StoreID:            "vec-1",
		Endpoint:           "http://vec-1:8080",
		AdapterType:        "vectorstore",
		DeclaredModalities: []string{"vector", "semantic"},
	})

	next := m.Apply(reg, cmd, 0)
	require.Len(t, next.Stores, 1)
	backend := next.Stores["vec-1"]
	require.NotNil(t, backend)
	assert.Equal(t, "http://vec-1:8080", backend.Endpoint)
	assert.True(t, backend.Modalities.Contains(types.ModalityVector))
	assert.True(t, backend.Modalities.Contains(types.ModalitySemantic))
	assert.Equal(t, 1.0, backend.TrustLevel)

	// Original registry must be untouched.
	assert.Empty(t, reg.Stores)
}

func TestApplyRegisterStoreClipsToAdapterCapability(t *testing.T) {
	clipper := fixedClipper{modalities: types.NewModalitySet(types.ModalityDocument), ok: true}
	m := NewMachine(clipper)
	reg := Empty()

	cmd := mustCommand(t, OpRegisterStore, RegisterStorePayload{
		StoreID:            "pg-1",
		AdapterType:        "postgresql",
		DeclaredModalities: []string{"document", "vector", "spatial"},
	})

	next := m.Apply(reg, cmd, 0)
	backend := next.Stores["pg-1"]
	require.NotNil(t, backend)
	assert.True(t, backend.Modalities.Contains(types.ModalityDocument))
	assert.False(t, backend.Modalities.Contains(types.ModalityVector))
	assert.False(t, backend.Modalities.Contains(types.ModalitySpatial))
}

func TestApplyRegisterStorePreservesTrustOnReregister(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["vec-1"] = &Backend{StoreID: "vec-1", TrustLevel: 0.4}

	cmd := mustCommand(t, OpRegisterStore, RegisterStorePayload{
		StoreID:     "vec-1",
		Endpoint:    "http://vec-1-new:8080",
		AdapterType: "vectorstore",
	})

	next := m.Apply(reg, cmd, 0)
	assert.Equal(t, 0.4, next.Stores["vec-1"].TrustLevel)
	assert.Equal(t, "http://vec-1-new:8080", next.Stores["vec-1"].Endpoint)
}

func TestApplyUnregisterStore(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["vec-1"] = &Backend{StoreID: "vec-1"}

	cmd := mustCommand(t, OpUnregisterStore, UnregisterStorePayload{StoreID: "vec-1"})
	next := m.Apply(reg, cmd, 0)

	assert.Empty(t, next.Stores)
	assert.Len(t, reg.Stores, 1, "original registry must not be mutated")
}

func TestApplyUnregisterStoreUnknownIsNoop(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()

	cmd := mustCommand(t, OpUnregisterStore, UnregisterStorePayload{StoreID: "ghost"})
	next := m.Apply(reg, cmd, 0)

	assert.Equal(t, reg, next)
}

func TestApplyMapHexadStampsEntryTimestamp(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a"}
	reg.Stores["b"] = &Backend{StoreID: "b"}

	cmd := mustCommand(t, OpMapHexad, MapHexadPayload{
		HexadID:      "hex-1",
		Locations:    []string{"a", "b"},
		PrimaryStore: "a",
	})

	const ts EntryTimestamp = 1700000000000
	next := m.Apply(reg, cmd, ts)

	mapping := next.Hexads["hex-1"]
	require.NotNil(t, mapping)
	assert.Equal(t, ts.asTime(), mapping.Created)
	assert.Equal(t, ts.asTime(), mapping.Modified)
	assert.Equal(t, []string{"a", "b"}, mapping.Locations)
}

func TestApplyMapHexadIsDeterministicAcrossReplays(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a"}
	cmd := mustCommand(t, OpMapHexad, MapHexadPayload{HexadID: "hex-1", Locations: []string{"a"}})

	const ts EntryTimestamp = 1700000000000
	first := m.Apply(reg, cmd, ts)
	second := m.Apply(reg, cmd, ts)

	assert.Equal(t, first.Hexads["hex-1"], second.Hexads["hex-1"])
}

func TestApplyMapHexadRejectsUnknownLocation(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()

	cmd := mustCommand(t, OpMapHexad, MapHexadPayload{HexadID: "hex-1", Locations: []string{"ghost"}})
	next := m.Apply(reg, cmd, 0)

	assert.Empty(t, next.Hexads)
}

func TestApplyMapHexadNeverOverwrites(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a"}
	reg.Hexads["hex-1"] = &HexadMapping{HexadID: "hex-1", Locations: []string{"a"}}

	cmd := mustCommand(t, OpMapHexad, MapHexadPayload{HexadID: "hex-1", Locations: []string{"a"}, PrimaryStore: "a"})
	next := m.Apply(reg, cmd, 99999)

	assert.Same(t, reg.Hexads["hex-1"], next.Hexads["hex-1"])
}

func TestApplyUnmapHexad(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Hexads["hex-1"] = &HexadMapping{HexadID: "hex-1"}

	cmd := mustCommand(t, OpUnmapHexad, UnmapHexadPayload{HexadID: "hex-1"})
	next := m.Apply(reg, cmd, 0)

	assert.Empty(t, next.Hexads)
}

func TestApplyUpdateTrustClampsToUnitInterval(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a", TrustLevel: 0.5}

	over := mustCommand(t, OpUpdateTrust, UpdateTrustPayload{StoreID: "a", NewTrust: 5.0})
	next := m.Apply(reg, over, 0)
	assert.Equal(t, 1.0, next.Stores["a"].TrustLevel)

	under := mustCommand(t, OpUpdateTrust, UpdateTrustPayload{StoreID: "a", NewTrust: -3.0})
	next = m.Apply(reg, under, 0)
	assert.Equal(t, 0.0, next.Stores["a"].TrustLevel)
}

func TestApplyUpdateTrustUnknownStoreIsNoop(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()

	cmd := mustCommand(t, OpUpdateTrust, UpdateTrustPayload{StoreID: "ghost", NewTrust: 0.9})
	next := m.Apply(reg, cmd, 0)

	assert.Equal(t, reg, next)
}

func TestApplyMalformedPayloadIsNoop(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a"}

	cmd := Command{Op: OpUpdateTrust, Data: []byte(`{"store_id": `)}
	next := m.Apply(reg, cmd, 0)

	assert.Equal(t, reg, next)
}

func TestApplyUnknownOpIsNoop(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()
	reg.Stores["a"] = &Backend{StoreID: "a"}

	next := m.Apply(reg, Command{Op: "future_op"}, 0)

	assert.Equal(t, reg, next)
}

func TestApplyNoopConsumesIndexWithoutChange(t *testing.T) {
	m := NewMachine(nil)
	reg := Empty()

	next := m.Apply(reg, Noop, 0)

	assert.Equal(t, reg, next)
}
