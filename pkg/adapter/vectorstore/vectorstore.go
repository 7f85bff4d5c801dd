// Package vectorstore adapts embedded vector indices to the hexad adapter
// contract using tidwall/buntdb, an embeddable ordered key/value store, as
// the index itself. Unlike the other adapter families this one talks to no
// external service: "endpoint" names a buntdb file (or ":memory:"), and the
// index lives inside the orchestrator process.
package vectorstore

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
	"github.com/tidwall/buntdb"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "vectorstore"

type Adapter struct{}

func New() Adapter { return Adapter{} }

func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	return types.NewModalitySet(types.ModalityVector, types.ModalitySemantic)
}

func (Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		endpoint = ":memory:"
	}
	db, err := buntdb.Open(endpoint)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindUnreachable, "vectorstore: open embedded index", err)
	}
	return &Instance{db: db}, nil
}

type record struct {
	HexadID string      `json:"hexad_id"`
	Vector  []float64   `json:"vector"`
	Data    interface{} `json:"data,omitempty"`
}

type scoredRecord struct {
	record
	score float64
}

type Instance struct {
	db *buntdb.DB
}

func (i *Instance) Close() error {
	return i.db.Close()
}

// Put indexes a vector record. Not part of the Adapter contract: the
// resolver never writes, but a backend's own ingestion path uses this to
// populate the embedded index the resolver subsequently queries.
func (i *Instance) Put(hexadID string, vector []float64, data interface{}) error {
	enc, err := json.Marshal(record{HexadID: hexadID, Vector: vector, Data: data})
	if err != nil {
		return ferrors.Wrap(ferrors.KindDecodeError, "vectorstore: encode record", err)
	}
	return i.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("vec:"+hexadID, string(enc), nil)
		return err
	})
}

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	// An embedded index is healthy as long as the handle is open; there is
	// no network path to fail.
	return adapter.HealthStatus{Healthy: true, ResponseTimeMS: 0}, nil
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	if len(q.VectorQuery) == 0 {
		return nil, ferrors.New(ferrors.KindMalformedRequest, "vectorstore: query has no vector_query")
	}

	var records []record
	err := i.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("vec:*", func(key, value string) bool {
			var r record
			if err := json.Unmarshal([]byte(value), &r); err == nil {
				records = append(records, r)
			}
			return true
		})
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "vectorstore: scan embedded index", err)
	}

	scoredRecords := make([]scoredRecord, 0, len(records))
	for _, r := range records {
		s := cosineSimilarity(q.VectorQuery, r.Vector)
		scoredRecords = append(scoredRecords, scoredRecord{record: r, score: s})
	}
	sort.Slice(scoredRecords, func(a, b int) bool { return scoredRecords[a].score > scoredRecords[b].score })

	limit := q.EffectiveLimit()
	if limit < len(scoredRecords) {
		scoredRecords = scoredRecords[:limit]
	}
	return scoredRecords, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]scoredRecord)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "vectorstore: unexpected raw result type")
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
			Score:       r.score,
			Data:        r.Data,
		})
	}
	return out, nil
}
