// Package types holds the value types shared across the resolver, adapter,
// and registry packages: the Modality enumeration, the neutral query shape
// adapters translate, and the normalised result shape they translate back
// into.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Modality is one of the eight fixed data facets a hexad may participate in.
// The wire form is case-insensitive; the internal representation is this
// enumerated tag.
type Modality uint8

const (
	ModalityUnknown Modality = iota
	ModalityGraph
	ModalityVector
	ModalityTensor
	ModalitySemantic
	ModalityDocument
	ModalityTemporal
	ModalityProvenance
	ModalitySpatial
)

var modalityNames = [...]string{
	ModalityUnknown:    "unknown",
	ModalityGraph:      "graph",
	ModalityVector:     "vector",
	ModalityTensor:     "tensor",
	ModalitySemantic:   "semantic",
	ModalityDocument:   "document",
	ModalityTemporal:   "temporal",
	ModalityProvenance: "provenance",
	ModalitySpatial:    "spatial",
}

// AllModalities lists the fixed enumeration in a stable order, used by
// adapters that need to enumerate their supported set deterministically.
var AllModalities = []Modality{
	ModalityGraph, ModalityVector, ModalityTensor, ModalitySemantic,
	ModalityDocument, ModalityTemporal, ModalityProvenance, ModalitySpatial,
}

func (m Modality) String() string {
	if int(m) < len(modalityNames) {
		return modalityNames[m]
	}
	return "unknown"
}

// ParseModality parses the case-insensitive wire form into a Modality.
func ParseModality(s string) (Modality, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modalityNames {
		if Modality(m) == ModalityUnknown {
			continue
		}
		if name == lower {
			return Modality(m), nil
		}
	}
	return ModalityUnknown, fmt.Errorf("unknown modality %q", s)
}

func (m Modality) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Modality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseModality(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ModalitySet is a small, order-independent set of modalities, serialised as
// a JSON array of strings for Registry and wire compatibility.
type ModalitySet map[Modality]struct{}

// NewModalitySet builds a set from a slice, de-duplicating.
func NewModalitySet(mods ...Modality) ModalitySet {
	s := make(ModalitySet, len(mods))
	for _, m := range mods {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports whether m is in the set.
func (s ModalitySet) Contains(m Modality) bool {
	_, ok := s[m]
	return ok
}

// Intersect returns the modalities present in both sets.
func (s ModalitySet) Intersect(other ModalitySet) ModalitySet {
	out := make(ModalitySet)
	for m := range s {
		if other.Contains(m) {
			out[m] = struct{}{}
		}
	}
	return out
}

// Slice returns the set's members in the fixed enumeration order, for
// deterministic output.
func (s ModalitySet) Slice() []Modality {
	out := make([]Modality, 0, len(s))
	for _, m := range AllModalities {
		if s.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s ModalitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *ModalitySet) UnmarshalJSON(data []byte) error {
	var names []Modality
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewModalitySet(names...)
	return nil
}
