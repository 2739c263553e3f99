// Package scoring holds the two pure functions the scheduler consults: the
// reach estimate used to rank candidates for promotion and the acceptance
// probability used for each decision draw.
//
// Both are interfaces so callers can swap the heuristics; the defaults reproduce
// the demo formulas.
package scoring

import (
	"math"

	"github.com/dyluth/collab/pkg/collab"
)

// Scorer maps a candidate to a reach estimate.
type Scorer interface {
	Reach(c collab.Candidate) int64
}

// DecisionModel maps a candidate to an acceptance probability in [0,1].
type DecisionModel interface {
	Probability(c collab.Candidate) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(c collab.Candidate) int64

func (f ScorerFunc) Reach(c collab.Candidate) int64 { return f(c) }

// ModelFunc adapts a plain function to DecisionModel.
type ModelFunc func(c collab.Candidate) float64

func (f ModelFunc) Probability(c collab.Candidate) float64 { return f(c) }

// DefaultNicheMultipliers is the multiplier table used when none is configured.
func DefaultNicheMultipliers() map[collab.Niche]float64 {
	return map[collab.Niche]float64{
		collab.NicheFood:    1.2,
		collab.NicheTravel:  1.3,
		collab.NicheFashion: 1.4,
		collab.NicheFitness: 1.1,
		collab.NicheBeauty:  1.3,
	}
}

// Reach estimates audience reach as
// followers * engagement% * authenticity% * nicheMultiplier, rounded.
type Reach struct {
	multipliers map[collab.Niche]float64
}

// NewReach copies the multiplier table. A nil table means every niche scores 1.0.
func NewReach(multipliers map[collab.Niche]float64) *Reach {
	m := make(map[collab.Niche]float64, len(multipliers))
	for k, v := range multipliers {
		m[k] = v
	}
	return &Reach{multipliers: m}
}

// Multiplier returns the niche multiplier, 1.0 for unknown niches.
func (r *Reach) Multiplier(n collab.Niche) float64 {
	if m, ok := r.multipliers[n]; ok {
		return m
	}
	return 1.0
}

func (r *Reach) Reach(c collab.Candidate) int64 {
	a := c.Attributes
	v := float64(a.Followers) * (a.Engagement / 100) * (a.Authenticity / 100) * r.Multiplier(a.Niche)
	return int64(math.Round(v))
}

// Heuristic is min(Cap, authenticity/AuthenticityDivisor + engagement/EngagementDivisor).
type Heuristic struct {
	Cap                 float64
	AuthenticityDivisor float64
	EngagementDivisor   float64
}

// DefaultHeuristic returns the demo constants (cap 0.95, divisors 150 and 10).
func DefaultHeuristic() Heuristic {
	return Heuristic{Cap: 0.95, AuthenticityDivisor: 150, EngagementDivisor: 10}
}

func (h Heuristic) Probability(c collab.Candidate) float64 {
	a := c.Attributes
	p := a.Authenticity/h.AuthenticityDivisor + a.Engagement/h.EngagementDivisor
	return clamp01(math.Min(h.Cap, p))
}

// Fixed returns a model that assigns the same probability to everyone.
func Fixed(p float64) DecisionModel {
	p = clamp01(p)
	return ModelFunc(func(collab.Candidate) float64 { return p })
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
