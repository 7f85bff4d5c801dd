package postgresql

import (
	"testing"

	"github.com/meridiandb/hexad/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestSupportedModalitiesNoExtensions(t *testing.T) {
	mods := New("postgres").SupportedModalities(nil, nil)

	assert.True(t, mods.Contains(types.ModalityDocument))
	assert.False(t, mods.Contains(types.ModalityVector))
	assert.False(t, mods.Contains(types.ModalitySpatial))
	assert.False(t, mods.Contains(types.ModalityTensor))
}

func TestSupportedModalitiesWithExtensions(t *testing.T) {
	mods := New("postgres").SupportedModalities(nil, []string{"pgvector", "postgis"})

	assert.True(t, mods.Contains(types.ModalityDocument))
	assert.True(t, mods.Contains(types.ModalityVector))
	assert.True(t, mods.Contains(types.ModalitySpatial))
	assert.False(t, mods.Contains(types.ModalityTensor))
}

func TestSupportedModalitiesIsCaseInsensitive(t *testing.T) {
	mods := New("postgres").SupportedModalities(nil, []string{"PgVector"})
	assert.True(t, mods.Contains(types.ModalityVector))
}
