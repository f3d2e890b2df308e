package randutil

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Uint64n random resource version seed
func Uint64n() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return rnd.Uint64()
}

func Intn(n int) int {
	mu.Lock()
	defer mu.Unlock()
	return rnd.Intn(n)
}
