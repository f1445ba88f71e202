package recommend

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is a goroutine-safe pseudo-random source for the heuristic
// estimates. A fixed seed makes every estimate reproducible.
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a PCG-backed source. A zero seed is replaced by the
// current time.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
