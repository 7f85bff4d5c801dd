package vectorstore

import (
	"context"
	"testing"

	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	inst, err := New().Connect(context.Background(), ":memory:", nil, nil)
	require.NoError(t, err)
	defer inst.Close()

	vs := inst.(*Instance)
	require.NoError(t, vs.Put("close", []float64{1, 0}, nil))
	require.NoError(t, vs.Put("far", []float64{0, 1}, nil))

	raw, err := vs.Query(context.Background(), types.NeutralQuery{VectorQuery: []float64{1, 0}})
	require.NoError(t, err)

	results, err := vs.TranslateResults("vec-1", raw)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].HexadID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestQueryWithoutVectorIsRejected(t *testing.T) {
	inst, err := New().Connect(context.Background(), ":memory:", nil, nil)
	require.NoError(t, err)
	defer inst.Close()

	_, err = inst.(*Instance).Query(context.Background(), types.NeutralQuery{})
	assert.Error(t, err)
}
