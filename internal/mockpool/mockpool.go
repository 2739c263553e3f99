// Package mockpool generates demo candidate pools and price estimates.
package mockpool

import (
	"fmt"
	"math"

	"github.com/dyluth/collab/internal/report"
	"github.com/dyluth/collab/pkg/collab"
)

// Source is the randomness the generator draws from.
type Source interface {
	Float64() float64
}

var names = []string{
	"Aditi Rao",
	"Rohit Cinematics",
	"FitWithKavya",
	"Priya Eats",
	"StreetBites",
	"UrbanBites",
	"CafeCrush",
	"LocalGrub",
}

// Generate returns n pending candidates with IDs 1..n in the given niche.
// Followers fall in [30k, 200k], engagement in [2, 8] to one decimal place and
// authenticity in [60, 100].
func Generate(rng Source, n int, niche collab.Niche) []collab.Candidate {
	out := make([]collab.Candidate, n)
	for i := range out {
		out[i] = collab.Candidate{
			ID:     i + 1,
			Name:   fmt.Sprintf("%s %d", names[i%len(names)], i+1),
			Status: collab.StatusPending,
			Attributes: collab.Attributes{
				Followers:    int64(math.Round(30000 + rng.Float64()*170000)),
				Engagement:   math.Round((2+rng.Float64()*6)*10) / 10,
				Authenticity: math.Round(60 + rng.Float64()*40),
				Niche:        niche,
			},
		}
	}
	return out
}

// EstimatePrice draws a campaign budget: low in [1500, 2500], high at least
// 1200 above low.
func EstimatePrice(rng Source) report.PriceRange {
	low := int64(math.Round(1500 + rng.Float64()*1000))
	high := int64(math.Round(float64(low) + 1200 + rng.Float64()*1800))
	return report.PriceRange{Low: low, High: high}
}
