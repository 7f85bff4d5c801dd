package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorPublishesRaftAndRegistrySnapshots(t *testing.T) {
	raftCalls := 0
	registryCalls := 0

	c := NewCollector(
		func() RaftSnapshot {
			raftCalls++
			return RaftSnapshot{IsLeader: true, Term: 3, CommitIndex: 5, AppliedIndex: 5, LogLength: 5}
		},
		func() RegistrySnapshot {
			registryCalls++
			return RegistrySnapshot{StoresByAdapterType: map[string]int{"documentstore": 2}, HexadsTotal: 7}
		},
	)

	c.collect()

	assert.Equal(t, 1, raftCalls)
	assert.Equal(t, 1, registryCalls)
	assert.Equal(t, float64(1), testutil.ToFloat64(RaftIsLeader))
	assert.Equal(t, float64(3), testutil.ToFloat64(RaftTerm))
	assert.Equal(t, float64(7), testutil.ToFloat64(HexadsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(StoresTotal.WithLabelValues("documentstore")))
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(
		func() RaftSnapshot { return RaftSnapshot{} },
		func() RegistrySnapshot { return RegistrySnapshot{} },
	)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
