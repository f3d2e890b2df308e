package station

import (
	"testing"

	"emssimulate/pkg/apis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationMeta(t *testing.T) {
	root := t.TempDir()
	m, err := NewStationManager(root)
	require.NoError(t, err)
	require.NoError(t, m.Init())
	meta := m.GetStationMeta()
	assert.Equal(t, defaultName, meta.Name)
	assert.NotEmpty(t, meta.ID)

	_, err = m.UpdateStationMeta("stale", "site-a", "")
	assert.ErrorIs(t, err, apis.ErrMismatch)
	updated, err := m.UpdateStationMeta(meta.GetVersion(), "site-a", "test bench")
	require.NoError(t, err)
	assert.NotEqual(t, meta.GetVersion(), updated.GetVersion())

	// the id survives a restart
	reopened, err := NewStationManager(root)
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	assert.Equal(t, meta.ID, reopened.GetStationMeta().ID)
	assert.Equal(t, "site-a", reopened.GetStationMeta().Name)
	assert.Equal(t, "test bench", reopened.GetStationMeta().Description)
}

func TestStationMem(t *testing.T) {
	m, err := NewStationManager(t.TempDir())
	require.NoError(t, err)
	vm, err := m.getStationMem()
	require.NoError(t, err)
	assert.NotEmpty(t, vm.Total)
}
