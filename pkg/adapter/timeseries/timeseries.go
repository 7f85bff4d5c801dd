// Package timeseries adapts sharded time-series backends to the hexad
// adapter contract. A timeseries family instance is actually N shard
// endpoints; cespare/xxhash/v2 routes a hexad_id to its shard with the same
// hash used to write it, so queries and writes agree on placement without a
// shared routing table.
package timeseries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/health"
	"github.com/meridiandb/hexad/pkg/types"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "timeseries"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityTemporal)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	shards := strings.Split(endpoint, ",")
	if len(shards) == 0 || shards[0] == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "timeseries: no shard endpoints configured")
	}
	return &Instance{
		shards: shards,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type Instance struct {
	shards []string
	client *http.Client
}

func (i *Instance) Close() error { return nil }

// shardFor routes hexadID to one of the configured shard endpoints using
// the same consistent hash a writer would use to place it there.
func (i *Instance) shardFor(hexadID string) string {
	h := xxhash.Sum64String(hexadID)
	return i.shards[h%uint64(len(i.shards))]
}

// HealthCheck probes every shard and is healthy only if all of them are,
// since a query that happens to hash onto a down shard fails regardless of
// the others' status.
func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	start := time.Now()
	healthy := true
	for _, shard := range i.shards {
		checker := health.NewHTTPChecker(shard + "/health").WithTimeout(i.client.Timeout)
		if result := checker.Check(ctx); !result.Healthy {
			healthy = false
		}
	}
	return adapter.HealthStatus{Healthy: healthy, ResponseTimeMS: time.Since(start).Milliseconds()}, nil
}

type rangeRow struct {
	HexadID   string  `json:"hexad_id"`
	Score     float64 `json:"score"`
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Query fans out across every shard, since a temporal range can span
// multiple hexads placed on different shards. The resolver still applies
// its own fan-out timeout around the call as a whole.
func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	// A query scoped to a single hexad_id needs only the shard that owns it.
	if hexadID, ok := q.Filters["hexad_id"]; ok && hexadID != "" {
		return i.queryShard(ctx, i.shardFor(hexadID), q)
	}

	var all []rangeRow
	for _, shard := range i.shards {
		rows, err := i.queryShard(ctx, shard, q)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (i *Instance) queryShard(ctx context.Context, shard string, q types.NeutralQuery) ([]rangeRow, error) {
	body, err := json.Marshal(map[string]interface{}{
		"temporal_range": q.TemporalRange,
		"limit":          q.EffectiveLimit(),
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindDecodeError, "timeseries: encode query", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, shard+"/range", bytes.NewReader(body))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "timeseries: build query request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "timeseries: query request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("timeseries: shard %s returned status %d", shard, resp.StatusCode))
	}
	var rows []rangeRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "timeseries: decode query response", err)
	}
	return rows, nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]rangeRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "timeseries: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(rows))
	for _, r := range rows {
		hexadID := r.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       r.Score,
			Data:        map[string]string{"timestamp": r.Timestamp, "value": strconv.FormatFloat(r.Value, 'f', -1, 64)},
		})
	}
	return out, nil
}
