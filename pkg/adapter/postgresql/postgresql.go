// Package postgresql adapts a single PostgreSQL instance to the hexad
// adapter contract using database/sql. Unlike the other families,
// postgresql's supported modalities depend on which extensions the
// instance has installed: document is always available via JSONB columns,
// while vector (pgvector), spatial (PostGIS), and tensor (array columns)
// require their extension to be declared. No third-party driver is wired
// here — database/sql's driver registry is satisfied by whichever
// PostgreSQL driver the deployment imports for its side effect; this
// package only ever talks to database/sql's interface.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/ferrors"
	"github.com/meridiandb/hexad/pkg/types"
)

// Tag is the adapter_type value backends of this family register under.
const Tag = "postgresql"

const (
	extensionVector  = "pgvector"
	extensionSpatial = "postgis"
	extensionTensor  = "tensor_columns"
)

type Adapter struct {
	// DriverName is the database/sql driver to open connections with
	// (e.g. "postgres", "pgx"). Left to the deployment to register.
	DriverName string
}

func New(driverName string) Adapter { return Adapter{DriverName: driverName} }

// SupportedModalities is the scenario from spec §8 scenario 6: with no
// extensions declared, only document is supported; each extension adds
// exactly the modality it gates.
func (Adapter) SupportedModalities(config map[string]string, extensions []string) types.ModalitySet {
	mods := types.NewModalitySet(types.ModalityDocument)
	for _, ext := range extensions {
		switch strings.ToLower(ext) {
		case extensionVector:
			mods[types.ModalityVector] = struct{}{}
		case extensionSpatial:
			mods[types.ModalitySpatial] = struct{}{}
		case extensionTensor:
			mods[types.ModalityTensor] = struct{}{}
		}
	}
	return mods
}

func (a Adapter) Connect(ctx context.Context, endpoint string, config map[string]string, extensions []string) (adapter.Instance, error) {
	if endpoint == "" {
		return nil, ferrors.New(ferrors.KindUnreachable, "postgresql: empty connection string")
	}
	driver := a.DriverName
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, endpoint)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "postgresql: open connection", err)
	}
	return &Instance{db: db, modalities: a.SupportedModalities(config, extensions)}, nil
}

type Instance struct {
	db         *sql.DB
	modalities types.ModalitySet
}

func (i *Instance) Close() error {
	return i.db.Close()
}

func (i *Instance) HealthCheck(ctx context.Context) (adapter.HealthStatus, error) {
	start := time.Now()
	err := i.db.PingContext(ctx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return adapter.HealthStatus{Healthy: false, ResponseTimeMS: elapsed}, ferrors.Wrap(ferrors.KindUnreachable, "postgresql: ping failed", err)
	}
	return adapter.HealthStatus{Healthy: true, ResponseTimeMS: elapsed}, nil
}

type pgRow struct {
	HexadID string
	Score   float64
	Payload string
}

func (i *Instance) Query(ctx context.Context, q types.NeutralQuery) (interface{}, error) {
	for _, m := range q.Modalities {
		if !i.modalities.Contains(m) {
			return nil, ferrors.New(ferrors.KindUnsupportedModality, fmt.Sprintf("postgresql: modality %s not enabled on this instance", m))
		}
	}

	var (
		stmt string
		args []interface{}
	)
	switch {
	case i.modalities.Contains(types.ModalityVector) && len(q.VectorQuery) > 0:
		stmt = `SELECT hexad_id, 1 - (embedding <=> $1::vector) AS score, document::text
		        FROM hexad_documents ORDER BY embedding <=> $1::vector LIMIT $2`
		args = []interface{}{vectorLiteral(q.VectorQuery), q.EffectiveLimit()}
	case i.modalities.Contains(types.ModalitySpatial) && q.SpatialBounds != nil:
		stmt = `SELECT hexad_id, 1.0, document::text FROM hexad_documents
		        WHERE ST_Within(geom, ST_MakeEnvelope($1, $2, $3, $4, 4326)) LIMIT $5`
		args = []interface{}{q.SpatialBounds.MinLon, q.SpatialBounds.MinLat, q.SpatialBounds.MaxLon, q.SpatialBounds.MaxLat, q.EffectiveLimit()}
	default:
		stmt = `SELECT hexad_id, 1.0, document::text FROM hexad_documents
		        WHERE document @@ plainto_tsquery($1) LIMIT $2`
		args = []interface{}{q.TextQuery, q.EffectiveLimit()}
	}

	rows, err := i.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "postgresql: query failed", err)
	}
	defer rows.Close()

	var out []pgRow
	for rows.Next() {
		var r pgRow
		if err := rows.Scan(&r.HexadID, &r.Score, &r.Payload); err != nil {
			return nil, ferrors.Wrap(ferrors.KindMalformedResponse, "postgresql: scan row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.KindBackendError, "postgresql: row iteration failed", err)
	}
	return out, nil
}

func vectorLiteral(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for idx, f := range v {
		if idx > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}

func (i *Instance) TranslateResults(sourceStore string, raw interface{}) ([]types.NormalisedResult, error) {
	rows, ok := raw.([]pgRow)
	if !ok {
		return nil, ferrors.New(ferrors.KindMalformedResponse, "postgresql: unexpected raw result type")
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
			Data:        r.Payload,
		})
	}
	return out, nil
}
