package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRequiresNodeID(t *testing.T) {
	path := writeConfig(t, "storage:\n  data_dir: /tmp/hexad\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-1
  bind_addr: ":7000"
  peers: [node-2, node-3]
storage:
  data_dir: /var/lib/hexad/node-1
raft:
  heartbeat_interval_ms: 25
resolver:
  per_peer_timeout_ms: 500
  drift_policy: strict
stores:
  - store_id: docs-1
    endpoint: http://localhost:9200
    adapter_type: documentstore
    trust_level: 1.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-1", cfg.Node.ID)
	assert.ElementsMatch(t, []string{"node-2", "node-3"}, cfg.Node.Peers)
	assert.Equal(t, "strict", cfg.Resolver.DriftPolicy)
	require.Len(t, cfg.Stores, 1)
	assert.Equal(t, "documentstore", cfg.Stores[0].AdapterType)
}

func TestConsensusConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, "node:\n  id: node-1\nstorage:\n  data_dir: /tmp/hexad\nraft:\n  heartbeat_interval_ms: 25\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	cc := cfg.ConsensusConfig()
	assert.Equal(t, 25*time.Millisecond, cc.HeartbeatInterval)
	assert.Equal(t, 150*time.Millisecond, cc.ElectionTimeoutMin)
}
