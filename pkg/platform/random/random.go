// Package random abstracts the uniform draw used by the sampling gate so
// services never call a global RNG directly and tests can supply
// deterministic sequences.
package random

import "math/rand/v2"

// Source yields uniformly distributed integers. Implementations must be
// safe for concurrent callers.
type Source interface {
	// IntN returns a uniform integer in [0, n). Panics if n <= 0, matching
	// math/rand/v2 semantics.
	IntN(n int) int
}

// Default is the process-wide source backed by math/rand/v2, whose
// top-level functions are safe for concurrent use and seeded from the
// OS entropy pool.
func Default() Source { return defaultSource{} }

type defaultSource struct{}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }

// Sequence is a deterministic Source for tests: it replays the given values
// in order and wraps around when exhausted.
type Sequence struct {
	values []int
	next   int
}

// NewSequence builds a Sequence. Values are returned as-is; callers are
// responsible for keeping them inside [0, n).
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) IntN(int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
