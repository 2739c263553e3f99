// Package pool holds the mutable candidate set of one run.
//
// A Pool is not safe for concurrent use. The scheduler owns it and funnels every
// mutation through its own mutex.
package pool

import (
	"fmt"

	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/pkg/collab"
)

// Pool is the ordered candidate set of a run and their statuses.
type Pool struct {
	order     []int                     // candidate IDs in dispatch order
	byID      map[int]*collab.Candidate // candidate ID -> candidate
	accepted  int
	dismissed map[int]bool // rejected by an operator, never promoted again
}

// New validates and copies the candidates. Statuses are kept as given.
// Duplicate IDs or invalid attributes return an error wrapping collab.ErrInvalidState.
func New(candidates []collab.Candidate) (*Pool, error) {
	p := &Pool{
		order:     make([]int, 0, len(candidates)),
		byID:      make(map[int]*collab.Candidate, len(candidates)),
		dismissed: make(map[int]bool),
	}

	for i := range candidates {
		c := candidates[i]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, exists := p.byID[c.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate candidate id %d", collab.ErrInvalidState, c.ID)
		}
		p.order = append(p.order, c.ID)
		p.byID[c.ID] = &c
		if c.Status == collab.StatusAccepted {
			p.accepted++
		}
	}

	return p, nil
}

// Len returns the number of candidates.
func (p *Pool) Len() int {
	return len(p.order)
}

// At returns the candidate at a dispatch position.
func (p *Pool) At(index int) collab.Candidate {
	return *p.byID[p.order[index]]
}

// Get returns a copy of the candidate with the given ID.
func (p *Pool) Get(id int) (collab.Candidate, bool) {
	c, ok := p.byID[id]
	if !ok {
		return collab.Candidate{}, false
	}
	return *c, true
}

// Snapshot returns a copy of every candidate in dispatch order.
func (p *Pool) Snapshot() []collab.Candidate {
	out := make([]collab.Candidate, len(p.order))
	for i, id := range p.order {
		out[i] = *p.byID[id]
	}
	return out
}

// StatusOf returns the candidate's status and whether it exists.
func (p *Pool) StatusOf(id int) (collab.Status, bool) {
	c, ok := p.byID[id]
	if !ok {
		return "", false
	}
	return c.Status, true
}

// AcceptedCount returns the number of accepted candidates.
func (p *Pool) AcceptedCount() int {
	return p.accepted
}

// SetStatus updates one candidate and reports whether it exists.
// A decided candidate never reverts to pending; such requests leave it unchanged.
func (p *Pool) SetStatus(id int, status collab.Status) bool {
	c, ok := p.byID[id]
	if !ok {
		return false
	}
	if status == collab.StatusPending && c.Status.IsDecided() {
		return true
	}

	if c.Status == collab.StatusAccepted {
		p.accepted--
	}
	if status == collab.StatusAccepted {
		p.accepted++
	}
	c.Status = status
	return true
}

// MarkDecided records when a candidate was decided.
func (p *Pool) MarkDecided(id int, seq int, atMs int64) {
	if c, ok := p.byID[id]; ok {
		c.DecidedSeq = seq
		c.DecidedAtMs = atMs
	}
}

// Dismiss excludes a candidate from every later promotion.
func (p *Pool) Dismiss(id int) {
	p.dismissed[id] = true
}

// Dismissed reports whether the candidate was dismissed by an operator.
func (p *Pool) Dismissed(id int) bool {
	return p.dismissed[id]
}

// ResetStatuses returns every candidate to pending and clears decision metadata
// and dismissals. Only a new epoch may do this.
func (p *Pool) ResetStatuses() {
	for _, c := range p.byID {
		c.Status = collab.StatusPending
		c.DecidedSeq = 0
		c.DecidedAtMs = 0
	}
	p.accepted = 0
	p.dismissed = make(map[int]bool)
}

// Pending returns the dispatch positions of candidates that are still pending.
func (p *Pool) Pending() []int {
	var idx []int
	for i, id := range p.order {
		if p.byID[id].Status == collab.StatusPending {
			idx = append(idx, i)
		}
	}
	return idx
}

// BestEligible picks the promotion target: the non-accepted, non-dismissed
// candidate with the highest reach, ties broken by the lowest ID. The candidate
// identified by exclude is never chosen.
func (p *Pool) BestEligible(scorer scoring.Scorer, exclude int) (int, bool) {
	bestID := 0
	var bestReach int64
	found := false

	for _, id := range p.order {
		c := p.byID[id]
		if id == exclude || c.Status == collab.StatusAccepted || p.dismissed[id] {
			continue
		}
		reach := scorer.Reach(*c)
		if !found || reach > bestReach || (reach == bestReach && id < bestID) {
			bestID, bestReach, found = id, reach, true
		}
	}

	return bestID, found
}
