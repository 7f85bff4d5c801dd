package registry

import (
	"encoding/json"
)

// Op tags the state-machine's input alphabet. Schema evolution is additive:
// a node that does not recognise an Op treats the command as Noop on
// replay, per spec §4.1.
type Op string

const (
	OpRegisterStore   Op = "register_store"
	OpUnregisterStore Op = "unregister_store"
	OpMapHexad        Op = "map_hexad"
	OpUnmapHexad      Op = "unmap_hexad"
	OpUpdateTrust     Op = "update_trust"
	OpNoop            Op = "noop"
)

// Command is the tagged-union envelope every Raft log entry carries. Data
// holds the Op-specific payload as raw JSON so that decoding an entry never
// requires knowing every Op's Go type up front — only Apply needs that.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Noop is the command appended by a newly elected leader to its own term,
// and the fallback for any Op this binary does not recognise.
var Noop = Command{Op: OpNoop}

// RegisterStorePayload is the Data of an OpRegisterStore command.
type RegisterStorePayload struct {
	StoreID            string            `json:"store_id"`
	Endpoint           string            `json:"endpoint"`
	AdapterType        string            `json:"adapter_type"`
	AdapterConfig      map[string]string `json:"adapter_config,omitempty"`
	Extensions         []string          `json:"extensions,omitempty"`
	DeclaredModalities []string          `json:"declared_modalities"`
}

// UnregisterStorePayload is the Data of an OpUnregisterStore command.
type UnregisterStorePayload struct {
	StoreID string `json:"store_id"`
}

// MapHexadPayload is the Data of an OpMapHexad command.
type MapHexadPayload struct {
	HexadID      string   `json:"hexad_id"`
	Locations    []string `json:"locations"`
	PrimaryStore string   `json:"primary_store,omitempty"`
}

// UnmapHexadPayload is the Data of an OpUnmapHexad command.
type UnmapHexadPayload struct {
	HexadID string `json:"hexad_id"`
}

// UpdateTrustPayload is the Data of an OpUpdateTrust command.
type UpdateTrustPayload struct {
	StoreID  string  `json:"store_id"`
	NewTrust float64 `json:"new_trust"`
}

// NewCommand marshals a typed payload into a Command envelope.
func NewCommand(op Op, payload interface{}) (Command, error) {
	if payload == nil {
		return Command{Op: op}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Data: data}, nil
}
