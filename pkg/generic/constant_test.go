package generic

import (
	"testing"

	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHandler(t *testing.T) {
	for pt := range constant.ProtocolTypeToString {
		h, err := CreateHandler(pt, pt.String(), pointmanager.New(0, 1), 10)
		require.NoError(t, err, pt.String())
		assert.Equal(t, protocol.Uninitialized, h.State(), pt.String())
		assert.Equal(t, pt.Family() == constant.FamilyTelecontrol, h.RebuildOnMutation(), pt.String())
	}

	_, err := CreateHandler(constant.ProtocolType(99), "x", pointmanager.New(), 10)
	assert.ErrorIs(t, err, constant.ErrProtocolType)
}
