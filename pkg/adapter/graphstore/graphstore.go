// Package graphstore adapts graph databases to the hexad adapter contract
// over a plain HTTP/JSON query endpoint. It uses only net/http: graph
// queries are comparatively low-QPS in this orchestrator's expected
// workload, so there is nothing for a specialised HTTP client to buy here.
package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "graphstore"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityGraph, types.ModalityProvenance)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "graphstore: empty endpoint")
	}
	return &Instance{endpoint: endpoint, client: &http.Client{Timeout: 10 * time.Second}}, nil
}

type Instance struct {
	endpoint string
	client   *http.Client
}

func (i *Instance) Close() error { return nil }

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.endpoint+"/health", nil)
	if err != nil {
		return adapter.HealthStatus{}, ferrors.Wrap(ferrors.KindBackendError, "graphstore: build health request", err)
	}
	resp, err := i.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: elapsed}, ferrors.Wrap(ferrors.KindUnreachable, "graphstore: health check failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return adapter.HealthStatus{Healthy: resp.StatusCode == http.StatusOK, ResponseTimeMS: elapsed}, nil
}

type traverseRequest struct {
	Pattern string `json:"graph_pattern"`
	Limit   int    `json:"limit"`
}

type traverseRow struct {
	HexadID      string          `json:"hexad_id"`
	Score        float64         `json:"score"`
	ProvenanceOK bool            `json:"provenance_verified"`
	Node         json.RawMessage `json:"node"`
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	body, err := json.Marshal(traverseRequest{Pattern: q.GraphPattern, Limit: q.EffectiveLimit()})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindDecodeError, "graphstore: encode query", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint+"/traverse", bytes.NewReader(body))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "graphstore: build query request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "graphstore: query request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("graphstore: query returned status %d", resp.StatusCode))
	}
	var rows []traverseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "graphstore: decode query response", err)
	}
	return rows, nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]traverseRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "graphstore: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(rows))
	for _, r := range rows {
		hexadID := r.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		var data interface{}
		if err := json.Unmarshal(r.Node, &data); err != nil {
			data = string(r.Node)
		}
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       r.Score,
			Drifted:     !r.ProvenanceOK,
			Data:        data,
		})
	}
	return out, nil
}
