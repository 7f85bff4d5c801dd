package main

import (
	"encoding/json"

	"github.com/meridiandb/hexad/pkg/config"
	"github.com/meridiandb/hexad/pkg/registry"
)

// registerStoreCommand builds the OpRegisterStore command a StoreConfig
// entry proposes at startup.
func registerStoreCommand(s config.StoreConfig) (registry.Command, error) {
	payload := registry.RegisterStorePayload{
		StoreID:            s.StoreID,
		Endpoint:           s.Endpoint,
		AdapterType:        s.AdapterType,
		AdapterConfig:      s.AdapterConfig,
		Extensions:         s.Extensions,
		DeclaredModalities: s.DeclaredModalities,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return registry.Command{}, err
	}
	return registry.Command{Op: registry.OpRegisterStore, Data: data}, nil
}
