// Package documentstore adapts document-oriented backends (JSON document
// stores) to the hexad adapter contract over a small HTTP/JSON API,
// encoding and decoding with json-iterator/go for lower allocation overhead
// than encoding/json on the hot query path.
package documentstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/health"
	"github.com/meridiandb/hexad/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tag is the adapter_type value backends of this family register under.
const Tag = "documentstore"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityDocument, types.ModalitySemantic)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "documentstore: empty endpoint")
	}
	return &Instance{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Instance is a connected handle to one documentstore backend.
type Instance struct {
	endpoint string
	client   *http.Client
	checker  *health.HTTPChecker
}

func (i *Instance) Close() error { return nil }

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	if i.checker == nil {
		i.checker = health.NewHTTPChecker(i.endpoint + "/_health").WithTimeout(i.client.Timeout)
	}
	result := i.checker.Check(ctx)
	if !result.Healthy {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: result.Duration.Milliseconds()}, ferrors.New(ferrors.KindUnreachable, "documentstore: "+result.Message)
	}
	return adapter.HealthStatus{Healthy: true, ResponseTimeMS: result.Duration.Milliseconds()}, nil
}

type searchRequest struct {
	Text    string            `json:"text_query,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Limit   int               `json:"limit"`
}

type searchResponseRow struct {
	HexadID string          `json:"hexad_id"`
	Score   float64         `json:"score"`
	Doc     jsoniter.RawMessage `json:"doc"`
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	body, err := json.Marshal(searchRequest{Text: q.TextQuery, Filters: q.Filters, Limit: q.EffectiveLimit()})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindDecodeError, "documentstore: encode query", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint+"/_search", bytes.NewReader(body))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "documentstore: build query request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "documentstore: query request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("documentstore: query returned status %d", resp.StatusCode))
	}
	var rows []searchResponseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "documentstore: decode query response", err)
	}
	return rows, nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]searchResponseRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "documentstore: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(rows))
	for _, r := range rows {
		hexadID := r.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		var data interface{}
		if err := json.Unmarshal(r.Doc, &data); err != nil {
			data = string(r.Doc)
		}
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       r.Score,
			Data:        data,
		})
	}
	return out, nil
}
