package constant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Layout MemoryLayout `json:"layout"`
		Type   DataType     `json:"type"`
		Access AccessMode   `json:"access"`
	}{CDAB, FLOAT32, AccessModeReadWrite})
	require.NoError(t, err)
	assert.JSONEq(t, `{"layout":"CDAB","type":"float32","access":"rw"}`, string(b))

	var ml MemoryLayout
	require.NoError(t, json.Unmarshal([]byte(`"BADC"`), &ml))
	assert.Equal(t, BADC, ml)
	assert.Error(t, json.Unmarshal([]byte(`"XYZW"`), &ml))
	assert.Equal(t, BADC, ml)

	_, err = json.Marshal(DataType(42))
	assert.Error(t, err)
}
