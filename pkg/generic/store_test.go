package generic

import (
	"os"
	"testing"

	"emssimulate/pkg/apis"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s, err := NewStore(t.TempDir(), storage.StoreGroupToString[storage.StoreGroupChannel], storage.Channels)
	require.NoError(t, err)

	ch := &runtime.Channel{
		ObjectMeta:   runtime.ObjectMeta{Name: "pcs", ID: "c1", Version: "10"},
		ProtocolType: constant.ModbusTcp,
		Enabled:      true,
		Options:      map[string]interface{}{"port": 1502},
	}
	_, err = s.Create(ch)
	require.NoError(t, err)
	_, err = s.Create(ch)
	assert.True(t, os.IsExist(err))

	ch.Name = "pcs-1"
	_, err = s.Update(ch, "11")
	assert.ErrorIs(t, err, apis.ErrMismatch)
	updated, err := s.Update(ch, "10")
	require.NoError(t, err)
	assert.NotEqual(t, "10", updated.GetVersion())

	loaded, err := s.LoadResource()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "pcs-1", loaded[0].Name)
	assert.Equal(t, constant.ModbusTcp, loaded[0].ProtocolType)
	assert.EqualValues(t, 1502, loaded[0].Options["port"])

	_, err = s.Delete(loaded[0])
	require.NoError(t, err)
	loaded, err = s.LoadResource()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
