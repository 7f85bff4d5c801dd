package metrics

import "time"

// RaftSnapshot is the subset of a consensus.Node's diagnostics the
// collector republishes as gauges.
type RaftSnapshot struct {
	IsLeader    bool
	Term        uint64
	CommitIndex uint64
	AppliedIndex uint64
	LogLength   uint64
}

// RegistrySnapshot is the subset of a Registry's shape the collector
// republishes as gauges.
type RegistrySnapshot struct {
	StoresByAdapterType map[string]int
	HexadsTotal         int
}

// Collector polls a cluster node on an interval and republishes its Raft
// and Registry state as Prometheus gauges. It takes plain accessor
// functions rather than a *consensus.Node or registry.Registry directly so
// that pkg/metrics never depends on those packages — pkg/consensus already
// depends on pkg/metrics to record counters and gauges inline, and Go does
// not allow the import cycle that would result from depending back.
type Collector struct {
	raft     func() RaftSnapshot
	registry func() RegistrySnapshot
	stopCh   chan struct{}
}

// NewCollector builds a Collector from the given accessors.
func NewCollector(raft func() RaftSnapshot, registry func() RegistrySnapshot) *Collector {
	return &Collector{
		raft:     raft,
		registry: registry,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRaftMetrics()
	c.collectRegistryMetrics()
}

func (c *Collector) collectRaftMetrics() {
	snap := c.raft()

	if snap.IsLeader {
		RaftIsLeader.Set(1)
	} else {
		RaftIsLeader.Set(0)
	}
	RaftTerm.Set(float64(snap.Term))
	RaftCommitIndex.Set(float64(snap.CommitIndex))
	RaftAppliedIndex.Set(float64(snap.AppliedIndex))
	RaftLogLength.Set(float64(snap.LogLength))
}

func (c *Collector) collectRegistryMetrics() {
	snap := c.registry()

	StoresTotal.Reset()
	for adapterType, count := range snap.StoresByAdapterType {
		StoresTotal.WithLabelValues(adapterType).Set(float64(count))
	}
	HexadsTotal.Set(float64(snap.HexadsTotal))
}
