package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	Slaves  []int         `json:"slaves"`
	Timeout time.Duration `json:"timeout"`
	Idle    time.Duration `json:"idleTimeout"`
}

func TestDecodeOptions(t *testing.T) {
	opts := &testOptions{Host: "0.0.0.0", Port: 502}
	err := DecodeOptions(map[string]interface{}{
		"port":        "1502",
		"slaves":      []interface{}{1, "2"},
		"timeout":     2,
		"idleTimeout": "30s",
	}, opts)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", opts.Host)
	assert.Equal(t, 1502, opts.Port)
	assert.Equal(t, []int{1, 2}, opts.Slaves)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, 30*time.Second, opts.Idle)
}
