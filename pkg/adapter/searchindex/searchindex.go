// Package searchindex adapts full-text/semantic search indices to the
// hexad adapter contract, using valyala/fasthttp for the query path since
// search indices are typically the highest-QPS backend a resolver fans out
// to.
package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/valyala/fasthttp"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "searchindex"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityDocument, types.ModalitySemantic)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "searchindex: empty endpoint")
	}
	return &Instance{
		endpoint: endpoint,
		client:   &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
	}, nil
}

type Instance struct {
	endpoint string
	client   *fasthttp.Client
}

func (i *Instance) Close() error { return nil }

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(i.endpoint + "/_cluster/health")
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, hasDeadline := ctx.Deadline()
	start := time.Now()
	var err error
	if hasDeadline {
		err = i.client.DoDeadline(req, resp, deadline)
	} else {
		err = i.client.Do(req, resp)
	}
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: elapsed}, ferrors.Wrap(ferrors.KindUnreachable, "searchindex: health check failed", err)
	}
	return adapter.HealthStatus{Healthy: resp.StatusCode() == fasthttp.StatusOK, ResponseTimeMS: elapsed}, nil
}

type searchHit struct {
	HexadID string          `json:"hexad_id"`
	Score   float64         `json:"score"`
	Source  json.RawMessage `json:"_source"`
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": q.TextQuery,
		"size":  q.EffectiveLimit(),
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindDecodeError, "searchindex: encode query", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(i.endpoint + "/_search")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		err = i.client.DoDeadline(req, resp, deadline)
	} else {
		err = i.client.Do(req, resp)
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "searchindex: query request failed", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("searchindex: query returned status %d", resp.StatusCode()))
	}

	var hits []searchHit
	if err := json.Unmarshal(resp.Body(), &hits); err != nil {
		return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "searchindex: decode query response", err)
	}
	return hits, nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	hits, ok := raw.([]searchHit)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "searchindex: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(hits))
	for _, h := range hits {
		hexadID := h.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		var data interface{}
		if err := json.Unmarshal(h.Source, &data); err != nil {
			data = string(h.Source)
		}
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       h.Score,
			Data:        data,
		})
	}
	return out, nil
}
