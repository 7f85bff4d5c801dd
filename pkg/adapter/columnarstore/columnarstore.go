// Package columnarstore adapts column-oriented analytical backends to the
// hexad adapter contract over a MessagePack wire format, encoded with
// tinylib/msgp. Rows are tensor/semantic feature vectors keyed by column
// name, a shape that benefits from msgp's binary float encoding on large
// batches.
package columnarstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/tinylib/msgp/msgp"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "columnarstore"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityTensor, types.ModalitySemantic)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "columnarstore: empty endpoint")
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
		return adapter.HealthStatus{}, ferrors.Wrap(ferrors.KindBackendError, "columnarstore: build health request", err)
	}
	resp, err := i.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: elapsed}, ferrors.Wrap(ferrors.KindUnreachable, "columnarstore: health check failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return adapter.HealthStatus{Healthy: resp.StatusCode == http.StatusOK, ResponseTimeMS: elapsed}, nil
}

// columnarRow is one scored feature row. MarshalMsg/UnmarshalMsg are
// hand-written in the shape msgp's code generator produces, since this
// module carries no go:generate step of its own.
type columnarRow struct {
	HexadID string
	Score   float64
	Columns map[string]float64
}

func (z *columnarRow) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 3)
	o = msgp.AppendString(o, "hexad_id")
	o = msgp.AppendString(o, z.HexadID)
	o = msgp.AppendString(o, "score")
	o = msgp.AppendFloat64(o, z.Score)
	o = msgp.AppendString(o, "columns")
	o = msgp.AppendMapHeader(o, uint32(len(z.Columns)))
	for k, v := range z.Columns {
		o = msgp.AppendString(o, k)
		o = msgp.AppendFloat64(o, v)
	}
	return o, nil
}

func (z *columnarRow) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for fieldIdx := uint32(0); fieldIdx < n; fieldIdx++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch key {
		case "hexad_id":
			z.HexadID, bts, err = msgp.ReadStringBytes(bts)
		case "score":
			z.Score, bts, err = msgp.ReadFloat64Bytes(bts)
		case "columns":
			var cn uint32
			cn, bts, err = msgp.ReadMapHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			z.Columns = make(map[string]float64, cn)
			for colIdx := uint32(0); colIdx < cn; colIdx++ {
				var ck string
				var cv float64
				ck, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
				cv, bts, err = msgp.ReadFloat64Bytes(bts)
				if err != nil {
					return bts, err
				}
				z.Columns[ck] = cv
			}
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	reqBody := msgp.AppendMapHeader(nil, 1)
	reqBody = msgp.AppendString(reqBody, "limit")
	reqBody = msgp.AppendInt(reqBody, int64(q.EffectiveLimit()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint+"/batch", bytes.NewReader(reqBody))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "columnarstore: build query request", err)
	}
	req.Header.Set("Content-Type", "application/msgpack")
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "columnarstore: query request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ferrors.New(ferrors.KindHTTPStatus, fmt.Sprintf("columnarstore: query returned status %d", resp.StatusCode))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindIOError, "columnarstore: read query response", err)
	}

	count, rest, err := msgp.ReadArrayHeaderBytes(respBody)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "columnarstore: decode response array header", err)
	}
	rows := make([]columnarRow, 0, count)
	for idx := uint32(0); idx < count; idx++ {
		var row columnarRow
		rest, err = row.UnmarshalMsg(rest)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "columnarstore: decode row", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]columnarRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "columnarstore: unexpected raw result type")
	}
	out := make([]types.NormalisedResult, 0, len(rows))
	for _, r := range rows {
		hexadID := r.HexadID
		if hexadID == "" {
			hexadID = types.UnknownHexadID
		}
		columns := make(map[string]float64, len(r.Columns))
		for k, v := range r.Columns {
			columns[k] = v
		}
		out = append(out, types.NormalisedResult{
			SourceStore: sourceStore,
			HexadID:     hexadID,
			Score:       r.Score,
			Data:        columns,
		})
	}
	return out, nil
}
