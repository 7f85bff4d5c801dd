package resolver

import (
	"path"

	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/types"
)

// ExclusionReason explains why a registered store was not queried.
type ExclusionReason string

const (
	ExcludedPatternMismatch    ExclusionReason = "pattern_mismatch"
	ExcludedModalityMismatch   ExclusionReason = "modality_mismatch"
	ExcludedTrustBelowStrict   ExclusionReason = "trust_below_strict_threshold"
)

// Exclusion pairs a store with why it was not queried.
type Exclusion struct {
	StoreID string
	Reason  ExclusionReason
}

// DefaultStrictTrustThreshold is the minimum trust_level a store must carry
// for DriftStrict to include it, per spec §4.3 and §6. It is configurable
// per Resolver (ResolverConfig.StrictTrustThreshold).
const DefaultStrictTrustThreshold = 0.7

// selectPeers filters reg's stores down to the ones eligible to receive q,
// in three pure stages: store_id pattern match, modality capability, and
// drift-policy trust filtering. It performs no I/O and has no side effects.
func selectPeers(reg registry.Registry, q types.NeutralQuery, storePattern string, driftPolicy types.DriftPolicy, strictTrustThreshold float64) ([]*registry.Backend, []Exclusion) {
	if storePattern == "" {
		storePattern = "*"
	}

	var selected []*registry.Backend
	var excluded []Exclusion

	for _, backend := range reg.ListStores() {
		matched, err := path.Match(storePattern, backend.StoreID)
		if err != nil || !matched {
			excluded = append(excluded, Exclusion{StoreID: backend.StoreID, Reason: ExcludedPatternMismatch})
			continue
		}

		if !hasAllModalities(backend.Modalities, q.Modalities) {
			excluded = append(excluded, Exclusion{StoreID: backend.StoreID, Reason: ExcludedModalityMismatch})
			continue
		}

		if driftPolicy == types.DriftStrict && backend.TrustLevel < strictTrustThreshold {
			excluded = append(excluded, Exclusion{StoreID: backend.StoreID, Reason: ExcludedTrustBelowStrict})
			continue
		}

		selected = append(selected, backend)
	}

	return selected, excluded
}

// hasAllModalities reports whether supported contains every modality in
// requested: spec §4.3 step 3 requires every requested modality to be in
// the peer's effective set, not merely one of them.
func hasAllModalities(supported types.ModalitySet, requested []types.Modality) bool {
	if len(requested) == 0 {
		return true
	}
	for _, m := range requested {
		if !supported.Contains(m) {
			return false
		}
	}
	return true
}
