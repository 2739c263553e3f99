// Package testutil provides fixtures shared by the engine's tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/dyluth/collab/pkg/collab"
)

// Candidate builds a pending candidate whose reach under a neutral niche is
// followers * engagement% * authenticity%.
func Candidate(id int, followers int64, engagement, authenticity float64) collab.Candidate {
	return collab.Candidate{
		ID:     id,
		Name:   fmt.Sprintf("creator-%d", id),
		Status: collab.StatusPending,
		Attributes: collab.Attributes{
			Followers:    followers,
			Engagement:   engagement,
			Authenticity: authenticity,
			Niche:        "Test",
		},
	}
}

// Pool builds n valid candidates with IDs 1..n, candidate 1 having the highest
// reach. Reach strictly decreases over the first 490 candidates; any further
// candidates share the minimum reach of 1.
func Pool(n int) []collab.Candidate {
	out := make([]collab.Candidate, n)
	for i := range out {
		out[i] = Candidate(i+1, poolFollowers(i), 5, 80)
	}
	return out
}

// poolFollowers steps down by 1000 (reach 40) for the first 90 positions, then
// by 25 (reach 1) until it bottoms out at 25.
func poolFollowers(i int) int64 {
	if i < 90 {
		return int64(100000 - i*1000)
	}
	f := int64(10000 - (i-90)*25)
	if f < 25 {
		f = 25
	}
	return f
}

// WithStatus returns a copy of c with the given status.
func WithStatus(c collab.Candidate, status collab.Status) collab.Candidate {
	c.Status = status
	return c
}

// Sequence is a deterministic random source that cycles through fixed values.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a source yielding the values in order, then repeating.
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

// Constant returns a source that always yields v.
func Constant(v float64) *Sequence {
	return NewSequence(v)
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Draws returns how many values have been consumed.
func (s *Sequence) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
