package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	StoresTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hexad_stores_total",
			Help: "Total number of registered backend stores by adapter type",
		},
		[]string{"adapter_type"},
	)

	HexadsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_mappings_total",
			Help: "Total number of hexad-to-store mappings in the Registry",
		},
	)

	// Raft metrics
	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower/candidate)",
		},
	)

	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_term",
			Help: "Current Raft term observed by this node",
		},
	)

	RaftPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_peers_total",
			Help: "Total number of Raft peers configured for this node",
		},
	)

	RaftLogLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_log_length",
			Help: "Current length of the node's Raft log (post-snapshot)",
		},
	)

	RaftCommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hexad_raft_applied_index",
			Help: "Highest log index applied to the Registry state machine",
		},
	)

	RaftElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hexad_raft_elections_total",
			Help: "Total number of elections started by this node",
		},
	)

	RaftProposalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hexad_raft_proposal_duration_seconds",
			Help:    "Time from proposal acceptance by the leader to commit+apply",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transport metrics
	TransportRPCTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexad_transport_rpc_total",
			Help: "Total number of Raft RPCs issued by kind and outcome",
		},
		[]string{"rpc", "outcome"},
	)

	TransportRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hexad_transport_rpc_duration_seconds",
			Help:    "Raft RPC round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rpc"},
	)

	// Resolver metrics
	ResolverQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexad_resolver_queries_total",
			Help: "Total number of resolver queries by drift policy",
		},
		[]string{"drift_policy"},
	)

	ResolverPeersQueried = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hexad_resolver_peers_queried",
			Help:    "Number of peers selected for fan-out per query",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	ResolverPeerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexad_resolver_peer_errors_total",
			Help: "Total number of per-peer adapter errors during fan-out, by store",
		},
		[]string{"store_id"},
	)

	ResolverQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hexad_resolver_query_duration_seconds",
			Help:    "End-to-end resolver query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AdapterQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hexad_adapter_query_duration_seconds",
			Help:    "Per-adapter query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter_type"},
	)
)

func init() {
	prometheus.MustRegister(
		StoresTotal,
		HexadsTotal,
		RaftIsLeader,
		RaftTerm,
		RaftPeersTotal,
		RaftLogLength,
		RaftCommitIndex,
		RaftAppliedIndex,
		RaftElectionsTotal,
		RaftProposalDuration,
		TransportRPCTotal,
		TransportRPCDuration,
		ResolverQueriesTotal,
		ResolverPeersQueried,
		ResolverPeerErrorsTotal,
		ResolverQueryDuration,
		AdapterQueryDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
