package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridiandb/hexad/pkg/events"
	"github.com/meridiandb/hexad/pkg/types"
)

// EntryTimestamp carries the log entry's own timestamp_ms into Apply so
// that Created/Modified bookkeeping is a function of the replicated entry,
// not of wall-clock time at apply. Replaying the same log twice must
// produce byte-identical Registry state, which a time.Now() read inside
// Apply would break.
type EntryTimestamp int64

func (t EntryTimestamp) asTime() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// ModalityClipper resolves an adapter family's actual capability for a given
// instance config, so register_store can clip declared modalities down to
// what the family can really support (spec §4.2, §8 scenario 6). It is
// implemented by adapter.Registry; defining it here rather than importing
// the adapter package keeps registry free of a dependency on adapters.
type ModalityClipper interface {
	SupportedModalities(adapterType string, config map[string]string, extensions []string) (types.ModalitySet, bool)
}

// Machine binds the pure Apply fold to the adapter capability lookup every
// node in the cluster must run identically in order for Apply to remain
// deterministic.
type Machine struct {
	Clipper ModalityClipper

	// Events is an optional sink for store/hexad lifecycle notices. A nil
	// Events is silently skipped.
	Events *events.Broker
}

// NewMachine constructs a Machine bound to the given modality clipper.
func NewMachine(clipper ModalityClipper) *Machine {
	return &Machine{Clipper: clipper}
}

func (m *Machine) publish(typ events.EventType, message string) {
	if m.Events == nil {
		return
	}
	m.Events.Publish(&events.Event{Type: typ, Message: message})
}

// Apply folds a single command into reg, returning the resulting Registry.
// reg is never mutated; the returned value may share unaffected entries by
// pointer with reg. Unknown ops and malformed payloads are treated as Noop
// — they still consume their log index but leave the Registry unchanged,
// per spec §4.1's forward/backward compatibility rule.
func (m *Machine) Apply(reg Registry, cmd Command, ts EntryTimestamp) Registry {
	switch cmd.Op {
	case OpRegisterStore:
		var p RegisterStorePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return reg
		}
		next := m.applyRegisterStore(reg, p)
		m.publish(events.EventStoreRegistered, fmt.Sprintf("store %s registered", p.StoreID))
		return next
	case OpUnregisterStore:
		var p UnregisterStorePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return reg
		}
		next := applyUnregisterStore(reg, p)
		m.publish(events.EventStoreUnregistered, fmt.Sprintf("store %s unregistered", p.StoreID))
		return next
	case OpMapHexad:
		var p MapHexadPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return reg
		}
		next := applyMapHexad(reg, p, ts)
		m.publish(events.EventHexadMapped, fmt.Sprintf("hexad %s mapped", p.HexadID))
		return next
	case OpUnmapHexad:
		var p UnmapHexadPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return reg
		}
		next := applyUnmapHexad(reg, p)
		m.publish(events.EventHexadUnmapped, fmt.Sprintf("hexad %s unmapped", p.HexadID))
		return next
	case OpUpdateTrust:
		var p UpdateTrustPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return reg
		}
		next := applyUpdateTrust(reg, p)
		m.publish(events.EventTrustUpdated, fmt.Sprintf("store %s trust updated to %.2f", p.StoreID, p.NewTrust))
		return next
	case OpNoop:
		return reg
	default:
		// Unknown tag: safety-preserving noop, still consumes its index.
		return reg
	}
}

func (m *Machine) applyRegisterStore(reg Registry, p RegisterStorePayload) Registry {
	declared := make(types.ModalitySet, len(p.DeclaredModalities))
	for _, name := range p.DeclaredModalities {
		if mod, err := types.ParseModality(name); err == nil {
			declared[mod] = struct{}{}
		}
	}

	effective := declared
	if m.Clipper != nil {
		if supported, ok := m.Clipper.SupportedModalities(p.AdapterType, p.AdapterConfig, p.Extensions); ok {
			effective = declared.Intersect(supported)
		}
	}

	next := reg.Clone()
	existing := next.Stores[p.StoreID]
	trust := 1.0
	if existing != nil {
		trust = existing.TrustLevel
	}
	backend := &Backend{
		StoreID:       p.StoreID,
		Endpoint:      p.Endpoint,
		AdapterType:   p.AdapterType,
		AdapterConfig: p.AdapterConfig,
		Extensions:    p.Extensions,
		Modalities:    effective,
		TrustLevel:    trust,
	}
	if existing != nil {
		backend.LastSeen = existing.LastSeen
		backend.ResponseTimeMS = existing.ResponseTimeMS
	}
	next.Stores[p.StoreID] = backend
	return next
}

func applyUnregisterStore(reg Registry, p UnregisterStorePayload) Registry {
	if _, ok := reg.Stores[p.StoreID]; !ok {
		return reg
	}
	next := reg.Clone()
	delete(next.Stores, p.StoreID)
	return next
}

func applyMapHexad(reg Registry, p MapHexadPayload, ts EntryTimestamp) Registry {
	// The Registry never silently overwrites: re-mapping must go through
	// unmap_hexad first.
	if _, exists := reg.Hexads[p.HexadID]; exists {
		return reg
	}
	for _, loc := range p.Locations {
		if _, ok := reg.Stores[loc]; !ok {
			return reg
		}
	}
	next := reg.Clone()
	now := ts.asTime()
	next.Hexads[p.HexadID] = &HexadMapping{
		HexadID:      p.HexadID,
		Locations:    append([]string(nil), p.Locations...),
		PrimaryStore: p.PrimaryStore,
		Created:      now,
		Modified:     now,
	}
	return next
}

func applyUnmapHexad(reg Registry, p UnmapHexadPayload) Registry {
	if _, ok := reg.Hexads[p.HexadID]; !ok {
		return reg
	}
	next := reg.Clone()
	delete(next.Hexads, p.HexadID)
	return next
}

func applyUpdateTrust(reg Registry, p UpdateTrustPayload) Registry {
	existing, ok := reg.Stores[p.StoreID]
	if !ok {
		return reg
	}
	clamped := p.NewTrust
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	next := reg.Clone()
	updated := existing.Clone()
	updated.TrustLevel = clamped
	next.Stores[p.StoreID] = updated
	return next
}
