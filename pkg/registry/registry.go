// Package registry implements the Registry state machine: the replicated
// set of backend stores and hexad-to-store mappings that the consensus
// layer keeps in sync across orchestration nodes. Registry itself is inert
// data; Machine.Apply is the pure function that folds a Command into a new
// Registry value.
package registry

import (
	"time"

	"github.com/meridiandb/hexad/pkg/types"
)

// Backend is a registered peer store, as described in spec §3.
type Backend struct {
	StoreID        string            `json:"store_id"`
	Endpoint       string            `json:"endpoint"`
	AdapterType    string            `json:"adapter_type"`
	AdapterConfig  map[string]string `json:"adapter_config,omitempty"`
	Extensions     []string          `json:"extensions,omitempty"`
	Modalities     types.ModalitySet `json:"modalities"`
	TrustLevel     float64           `json:"trust_level"`
	LastSeen       *time.Time        `json:"-"` // volatile, never snapshotted
	ResponseTimeMS *int64            `json:"-"` // volatile, never snapshotted
}

// Clone returns a deep-enough copy of b so the caller can mutate the result
// without affecting any Registry still holding b.
func (b *Backend) Clone() *Backend {
	if b == nil {
		return nil
	}
	clone := *b
	if b.AdapterConfig != nil {
		clone.AdapterConfig = make(map[string]string, len(b.AdapterConfig))
		for k, v := range b.AdapterConfig {
			clone.AdapterConfig[k] = v
		}
	}
	if b.Extensions != nil {
		clone.Extensions = append([]string(nil), b.Extensions...)
	}
	if b.Modalities != nil {
		clone.Modalities = make(types.ModalitySet, len(b.Modalities))
		for m := range b.Modalities {
			clone.Modalities[m] = struct{}{}
		}
	}
	return &clone
}

// HexadMapping records which stores hold at least one modality of a hexad.
type HexadMapping struct {
	HexadID      string    `json:"hexad_id"`
	Locations    []string  `json:"locations"`
	PrimaryStore string    `json:"primary_store,omitempty"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

func (h *HexadMapping) Clone() *HexadMapping {
	if h == nil {
		return nil
	}
	clone := *h
	clone.Locations = append([]string(nil), h.Locations...)
	return &clone
}

// Registry is the replicated cluster view: the backend set and the hexad
// location index. It is never mutated in place by Machine.Apply — each
// applied command produces a new Registry value sharing unchanged entries
// by pointer with the previous one.
type Registry struct {
	Stores map[string]*Backend      `json:"stores"`
	Hexads map[string]*HexadMapping `json:"hexads"`
}

// Empty returns a Registry with no stores and no mappings, the initial
// state every node starts from before any command is applied.
func Empty() Registry {
	return Registry{
		Stores: make(map[string]*Backend),
		Hexads: make(map[string]*HexadMapping),
	}
}

// Clone returns a shallow copy of the top-level maps: entries are shared by
// pointer until Machine.Apply replaces the ones a command touches.
func (r Registry) Clone() Registry {
	stores := make(map[string]*Backend, len(r.Stores))
	for k, v := range r.Stores {
		stores[k] = v
	}
	hexads := make(map[string]*HexadMapping, len(r.Hexads))
	for k, v := range r.Hexads {
		hexads[k] = v
	}
	return Registry{Stores: stores, Hexads: hexads}
}

// GetStore returns the backend registered under id, or nil if absent.
func (r Registry) GetStore(id string) *Backend {
	return r.Stores[id]
}

// ListStores returns every registered backend, order unspecified.
func (r Registry) ListStores() []*Backend {
	out := make([]*Backend, 0, len(r.Stores))
	for _, b := range r.Stores {
		out = append(out, b)
	}
	return out
}
