// Package types defines the domain model shared by every hexad package: the
// fixed Modality enumeration, the backend-agnostic NeutralQuery a client
// issues and the NormalisedResult every adapter's translate_results must
// produce, regardless of which backend family served the query.
//
// Registry state (backends, hexad mappings) lives in pkg/registry rather
// than here, since it is owned by the consensus state machine and carries
// its own Clone/Apply semantics.
package types
