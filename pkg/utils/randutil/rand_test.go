package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64n(t *testing.T) {
	assert.NotEqual(t, Uint64n(), Uint64n())
}

func TestIntn(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := Intn(10)
		assert.True(t, v >= 0 && v < 10)
	}
}
