// Package config loads a hexad node's YAML configuration file with
// gopkg.in/yaml.v3 into a plain struct, no environment-variable overlay or
// remote config service.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/meridiandb/hexad/pkg/consensus"
	"gopkg.in/yaml.v3"
)

// Config is a single node's full configuration: its Raft identity and
// peers, storage location, and the resolver defaults it applies to
// federated queries it serves.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Storage  StorageConfig  `yaml:"storage"`
	Raft     RaftConfig     `yaml:"raft"`
	Resolver ResolverConfig `yaml:"resolver"`
	Stores   []StoreConfig  `yaml:"stores,omitempty"`
}

// NodeConfig identifies this node within the cluster.
type NodeConfig struct {
	ID         string   `yaml:"id"`
	BindAddr   string   `yaml:"bind_addr"`
	Peers      []string `yaml:"peers,omitempty"`
	PeerAddrs  map[string]string `yaml:"peer_addrs,omitempty"`
}

// StorageConfig points at the WAL directory.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// RaftConfig overrides consensus.DefaultConfig's timer bounds; any zero
// field falls back to the default.
type RaftConfig struct {
	ElectionTimeoutMinMS int `yaml:"election_timeout_min_ms,omitempty"`
	ElectionTimeoutMaxMS int `yaml:"election_timeout_max_ms,omitempty"`
	HeartbeatIntervalMS  int `yaml:"heartbeat_interval_ms,omitempty"`
	RPCTimeoutMS         int `yaml:"rpc_timeout_ms,omitempty"`
}

// ResolverConfig overrides the federation resolver's defaults.
type ResolverConfig struct {
	PerPeerTimeoutMS     int     `yaml:"per_peer_timeout_ms,omitempty"`
	DefaultLimit         int     `yaml:"default_limit,omitempty"`
	DriftPolicy          string  `yaml:"drift_policy,omitempty"`
	StrictTrustThreshold float64 `yaml:"strict_trust_threshold,omitempty"`
}

// StoreConfig seeds a backend store at startup via a local OpRegisterStore
// proposal, so a fresh cluster doesn't need a separate bootstrap script.
type StoreConfig struct {
	StoreID            string            `yaml:"store_id"`
	Endpoint           string            `yaml:"endpoint"`
	AdapterType        string            `yaml:"adapter_type"`
	AdapterConfig      map[string]string `yaml:"adapter_config,omitempty"`
	Extensions         []string          `yaml:"extensions,omitempty"`
	DeclaredModalities []string          `yaml:"declared_modalities,omitempty"`
	TrustLevel         float64           `yaml:"trust_level"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Node.ID == "" {
		return Config{}, fmt.Errorf("config: node.id is required")
	}
	if cfg.Storage.DataDir == "" {
		return Config{}, fmt.Errorf("config: storage.data_dir is required")
	}
	return cfg, nil
}

// electionTimeoutMin returns the configured or default value as a
// time.Duration.
func (c RaftConfig) electionTimeoutMin(fallback time.Duration) time.Duration {
	if c.ElectionTimeoutMinMS == 0 {
		return fallback
	}
	return time.Duration(c.ElectionTimeoutMinMS) * time.Millisecond
}

func (c RaftConfig) electionTimeoutMax(fallback time.Duration) time.Duration {
	if c.ElectionTimeoutMaxMS == 0 {
		return fallback
	}
	return time.Duration(c.ElectionTimeoutMaxMS) * time.Millisecond
}

func (c RaftConfig) heartbeatInterval(fallback time.Duration) time.Duration {
	if c.HeartbeatIntervalMS == 0 {
		return fallback
	}
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c RaftConfig) rpcTimeout(fallback time.Duration) time.Duration {
	if c.RPCTimeoutMS == 0 {
		return fallback
	}
	return time.Duration(c.RPCTimeoutMS) * time.Millisecond
}

// ConsensusConfig builds a consensus.Config, filling any field the YAML
// file left at zero with consensus.DefaultConfig's value.
func (c Config) ConsensusConfig() consensus.Config {
	def := consensus.DefaultConfig()
	return consensus.Config{
		ElectionTimeoutMin: c.Raft.electionTimeoutMin(def.ElectionTimeoutMin),
		ElectionTimeoutMax: c.Raft.electionTimeoutMax(def.ElectionTimeoutMax),
		HeartbeatInterval:  c.Raft.heartbeatInterval(def.HeartbeatInterval),
		RPCTimeout:         c.Raft.rpcTimeout(def.RPCTimeout),
	}
}
