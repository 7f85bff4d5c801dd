package registry

import (
	"encoding/json"
	"fmt"

	"github.com/meridiandb/hexad/pkg/ferrors"
)

// Validate checks a command against reg and the adapter capability lookup
// before it is allowed to reach the log, per spec §7: "Raised synchronously
// before an entry is appended; invalid commands never reach the log."
func (m *Machine) Validate(reg Registry, cmd Command) error {
	switch cmd.Op {
	case OpRegisterStore:
		var p RegisterStorePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return ferrors.Wrap(ferrors.KindDecodeError, "malformed register_store payload", err)
		}
		if p.StoreID == "" {
			return ferrors.New(ferrors.KindDecodeError, "register_store requires a store_id")
		}
		if m.Clipper != nil {
			if _, ok := m.Clipper.SupportedModalities(p.AdapterType, p.AdapterConfig, p.Extensions); !ok {
				return ferrors.New(ferrors.KindUnknownAdapter, fmt.Sprintf("unknown adapter_type %q", p.AdapterType))
			}
		}
		return nil

	case OpUnregisterStore:
		var p UnregisterStorePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return ferrors.Wrap(ferrors.KindDecodeError, "malformed unregister_store payload", err)
		}
		if _, ok := reg.Stores[p.StoreID]; !ok {
			return ferrors.New(ferrors.KindUnknownStore, fmt.Sprintf("unknown store %q", p.StoreID))
		}
		return nil

	case OpMapHexad:
		var p MapHexadPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return ferrors.Wrap(ferrors.KindDecodeError, "malformed map_hexad payload", err)
		}
		if p.HexadID == "" {
			return ferrors.New(ferrors.KindDecodeError, "map_hexad requires a hexad_id")
		}
		if _, exists := reg.Hexads[p.HexadID]; exists {
			return ferrors.New(ferrors.KindDuplicateStore, fmt.Sprintf("hexad %q is already mapped; unmap first", p.HexadID))
		}
		for _, loc := range p.Locations {
			if _, ok := reg.Stores[loc]; !ok {
				return ferrors.New(ferrors.KindUnknownStore, fmt.Sprintf("location %q is not a registered store", loc))
			}
		}
		return nil

	case OpUnmapHexad:
		var p UnmapHexadPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return ferrors.Wrap(ferrors.KindDecodeError, "malformed unmap_hexad payload", err)
		}
		if _, ok := reg.Hexads[p.HexadID]; !ok {
			return ferrors.New(ferrors.KindUnknownStore, fmt.Sprintf("unknown hexad %q", p.HexadID))
		}
		return nil

	case OpUpdateTrust:
		var p UpdateTrustPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return ferrors.Wrap(ferrors.KindDecodeError, "malformed update_trust payload", err)
		}
		if _, ok := reg.Stores[p.StoreID]; !ok {
			return ferrors.New(ferrors.KindUnknownStore, fmt.Sprintf("unknown store %q", p.StoreID))
		}
		return nil

	case OpNoop:
		return nil

	default:
		// Unknown ops are accepted at the validation boundary — they will
		// be applied as Noop, the forward-compatibility path spec §4.1
		// requires. Rejecting them here would stop an older binary's
		// leader from replicating a newer binary's commands at all.
		return nil
	}
}
