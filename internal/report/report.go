// Package report derives display aggregates from run snapshots. Every function
// is a pure projection: snapshots are read, never modified.
package report

import (
	"math"
	"sort"

	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/pkg/collab"
)

// Entry is one candidate as shown in a report.
type Entry struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Niche        collab.Niche  `json:"niche"`
	Followers    int64         `json:"followers"`
	Engagement   float64       `json:"engagement"`
	Authenticity float64       `json:"authenticity"`
	Reach        int64         `json:"reach"`
	Status       collab.Status `json:"status"`
}

// Share is one slice of the reach contribution chart.
type Share struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ROIPoint is one step of the projected ROI trend.
type ROIPoint struct {
	Step int   `json:"step"`
	ROI  int64 `json:"roi"`
}

// Decision is one point of the cumulative acceptance curve.
type Decision struct {
	Seq         int           `json:"seq"`
	AtMs        int64         `json:"at_ms"`
	CandidateID int           `json:"candidate_id"`
	Status      collab.Status `json:"status"`
	Accepted    int           `json:"accepted"` // cumulative
}

// TimelineData holds the acceptance timeline in both shapes the dashboard drew.
type TimelineData struct {
	Positions []int      `json:"positions"` // 1 if the candidate at that pool position is accepted
	Decisions []Decision `json:"decisions"`
}

// StatusCounts totals candidates by status.
type StatusCounts struct {
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// PriceRange is the estimated total campaign budget.
type PriceRange struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
}

// IsZero reports whether no price range was supplied.
func (p PriceRange) IsZero() bool {
	return p.Low == 0 && p.High == 0
}

// TopSelected returns accepted candidates by reach, highest first (lowest ID on
// ties), truncated to the run's quota.
func TopSelected(snap collab.Snapshot, scorer scoring.Scorer) []Entry {
	accepted := rankedAccepted(snap, scorer)
	if len(accepted) > snap.Quota {
		accepted = accepted[:snap.Quota]
	}
	return accepted
}

// WaitingList returns accepted candidates that did not make TopSelected. It is
// empty unless a resumed run carried over more accepts than its quota.
func WaitingList(snap collab.Snapshot, scorer scoring.Scorer) []Entry {
	accepted := rankedAccepted(snap, scorer)
	if len(accepted) <= snap.Quota {
		return []Entry{}
	}
	return accepted[snap.Quota:]
}

// Timeline returns the per-position acceptance series and the cumulative
// accept curve in decision order.
func Timeline(snap collab.Snapshot) TimelineData {
	data := TimelineData{
		Positions: make([]int, len(snap.Candidates)),
		Decisions: []Decision{},
	}

	var decided []collab.Candidate
	for i, c := range snap.Candidates {
		if c.Status == collab.StatusAccepted {
			data.Positions[i] = 1
		}
		if c.DecidedSeq > 0 {
			decided = append(decided, c)
		}
	}

	sort.Slice(decided, func(i, j int) bool { return decided[i].DecidedSeq < decided[j].DecidedSeq })

	accepted := 0
	for _, c := range decided {
		if c.Status == collab.StatusAccepted {
			accepted++
		}
		data.Decisions = append(data.Decisions, Decision{
			Seq:         c.DecidedSeq,
			AtMs:        c.DecidedAtMs,
			CandidateID: c.ID,
			Status:      c.Status,
			Accepted:    accepted,
		})
	}
	return data
}

// ReachShares returns each top selected candidate's estimated reach.
func ReachShares(snap collab.Snapshot, scorer scoring.Scorer) []Share {
	top := TopSelected(snap, scorer)
	out := make([]Share, len(top))
	for i, e := range top {
		out[i] = Share{Name: e.Name, Value: e.Reach}
	}
	return out
}

// ROISeries projects round(engagement * authenticity / 1.5) for each top
// selected candidate, numbered from 1.
func ROISeries(snap collab.Snapshot, scorer scoring.Scorer) []ROIPoint {
	top := TopSelected(snap, scorer)
	out := make([]ROIPoint, len(top))
	for i, e := range top {
		out[i] = ROIPoint{Step: i + 1, ROI: int64(math.Round(e.Engagement * e.Authenticity / 1.5))}
	}
	return out
}

// CostPerSlot splits the average of the price range across quota slots.
// ok is false when there is no range or quota is not positive.
func CostPerSlot(price PriceRange, quota int) (int64, bool) {
	if price.IsZero() || quota <= 0 {
		return 0, false
	}
	avg := math.Round(float64(price.Low+price.High) / 2)
	return int64(math.Round(avg / float64(quota))), true
}

// Counts totals the snapshot's candidates by status.
func Counts(snap collab.Snapshot) StatusCounts {
	var c StatusCounts
	for _, cand := range snap.Candidates {
		switch cand.Status {
		case collab.StatusAccepted:
			c.Accepted++
		case collab.StatusRejected:
			c.Rejected++
		default:
			c.Pending++
		}
	}
	return c
}

func rankedAccepted(snap collab.Snapshot, scorer scoring.Scorer) []Entry {
	out := []Entry{}
	for _, c := range snap.Candidates {
		if c.Status == collab.StatusAccepted {
			out = append(out, newEntry(c, scorer))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reach != out[j].Reach {
			return out[i].Reach > out[j].Reach
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func newEntry(c collab.Candidate, scorer scoring.Scorer) Entry {
	return Entry{
		ID:           c.ID,
		Name:         c.Name,
		Niche:        c.Attributes.Niche,
		Followers:    c.Attributes.Followers,
		Engagement:   c.Attributes.Engagement,
		Authenticity: c.Attributes.Authenticity,
		Reach:        scorer.Reach(c),
		Status:       c.Status,
	}
}
