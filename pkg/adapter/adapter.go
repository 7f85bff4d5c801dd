// Package adapter defines the uniform contract every backend family
// implements, and the tag-keyed Registry the federation resolver and
// registry state machine use to reach a concrete implementation.
package adapter

import (
	"context"

	"github.com/meridiandb/hexad/pkg/types"
)

// HealthStatus is the outcome of an adapter's health_check.
type HealthStatus struct {
	Healthy        bool
	ResponseTimeMS int64
	Detail         string
}

// Instance is a live, connected handle to one backend store. It is created
// by Adapter.Connect from a registered Backend's endpoint/config/extensions
// and is the receiver for every subsequent call against that store.
type Instance interface {
	// HealthCheck probes the backend and reports its current status. It
	// must return promptly and never block past ctx's deadline.
	HealthCheck(ctx context.Context) (HealthStatus, error)

	// Query runs q against the backend and returns raw, backend-native
	// results. The caller passes them to TranslateResults to normalise.
	Query(ctx context.Context, q types.NeutralQuery) (raw interface{}, err error)

	// TranslateResults converts a backend-native Query result into the
	// uniform NormalisedResult shape. It performs no I/O.
	TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error)

	// Close releases any resources Connect acquired.
	Close() error
}

// Adapter is the per-family factory the Registry dispatches to. Every
// backend family (documentstore, searchindex, graphstore, ...) implements
// exactly one Adapter and registers it under a fixed tag.
type Adapter interface {
	// Connect establishes a handle to a specific store instance, given its
	// endpoint, adapter-specific config, and enabled extensions.
	Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (Instance, error)

	// SupportedModalities is pure and performs no I/O: it reports which
	// modalities this family can serve for a given config/extensions
	// combination, independent of whether any instance is reachable. The
	// Registry state machine uses this to clip a store's declared
	// modalities down to what the family can actually support.
	SupportedModalities(config map[string]string, extensions []string) types.ModalitySet
}
