package collab

import (
	"fmt"
	"math"
)

// Candidate is a single creator that receives the offer during a run.
type Candidate struct {
	ID          int        `json:"id"`                      // Stable within a run, used as the promotion tie-break
	Name        string     `json:"name"`                    // Display name
	Attributes  Attributes `json:"attributes"`              // Inputs to scoring and the decision model
	Status      Status     `json:"status"`                  // Current decision state
	DecidedSeq  int        `json:"decided_seq,omitempty"`   // 1-based order in which the candidate was decided (0 = undecided)
	DecidedAtMs int64      `json:"decided_at_ms,omitempty"` // Offset from run start in milliseconds when decided
}

// Attributes are the immutable properties of a candidate.
type Attributes struct {
	Followers    int64   `json:"followers"`    // Non-negative follower count
	Engagement   float64 `json:"engagement"`   // Engagement rate in percent (0-100)
	Authenticity float64 `json:"authenticity"` // Authenticity score in percent (0-100)
	Niche        Niche   `json:"niche"`        // Key into the niche multiplier table
}

// Niche is the content category of a candidate.
// Unknown niches are allowed and score with a neutral multiplier.
type Niche string

const (
	NicheFood    Niche = "Food"
	NicheTravel  Niche = "Travel"
	NicheFashion Niche = "Fashion"
	NicheFitness Niche = "Fitness"
	NicheBeauty  Niche = "Beauty"
)

// Status is the decision state of a candidate.
type Status string

const (
	// StatusPending means the candidate has not answered yet
	StatusPending Status = "pending"

	// StatusAccepted means the candidate accepted (or was promoted)
	StatusAccepted Status = "accepted"

	// StatusRejected means the candidate declined (or was rejected by an operator)
	StatusRejected Status = "rejected"
)

// Phase is the lifecycle state of the scheduler's current run.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseLocked  Phase = "locked"
	PhaseStopped Phase = "stopped"
)

// LockState reports whether the run has been locked for the current epoch.
type LockState string

const (
	LockOpen   LockState = "open"
	LockLocked LockState = "locked"
)

// StopReason explains why a run reached PhaseStopped.
type StopReason string

const (
	StopNone      StopReason = ""
	StopCeiling   StopReason = "ceiling"
	StopExhausted StopReason = "exhausted"
	StopCancelled StopReason = "cancelled"
)

// Snapshot is a point-in-time, read-only copy of a run.
type Snapshot struct {
	RunID         string      `json:"run_id"`
	Epoch         uint64      `json:"epoch"`
	Phase         Phase       `json:"phase"`
	LockState     LockState   `json:"lock_state"`
	Forced        bool        `json:"forced,omitempty"` // Locked through ForceLock rather than by reaching quota
	StopReason    StopReason  `json:"stop_reason,omitempty"`
	Quota         int         `json:"quota"`
	AcceptedCount int         `json:"accepted_count"`
	PendingEvents int         `json:"pending_events"` // Decision events still scheduled for this epoch
	StartedAtMs   int64       `json:"started_at_ms,omitempty"`
	Candidates    []Candidate `json:"candidates"`
}

// NewCandidate builds a pending candidate after validating its attributes.
func NewCandidate(id int, name string, attrs Attributes) (Candidate, error) {
	c := Candidate{
		ID:         id,
		Name:       name,
		Attributes: attrs,
		Status:     StatusPending,
	}
	if err := c.Validate(); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// IsDecided reports whether the status is final for the current epoch.
func (s Status) IsDecided() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Validate checks the candidate's ID, attribute ranges and status. IDs start
// at 1; events use 0 for "no candidate". Errors wrap ErrInvalidState.
func (c *Candidate) Validate() error {
	if c.ID < 1 {
		return fmt.Errorf("%w: candidate id must be >= 1, got %d", ErrInvalidState, c.ID)
	}
	if err := c.Attributes.Validate(); err != nil {
		return fmt.Errorf("%w: candidate %d: %v", ErrInvalidState, c.ID, err)
	}
	if err := c.Status.Validate(); err != nil {
		return fmt.Errorf("%w: candidate %d: %v", ErrInvalidState, c.ID, err)
	}
	return nil
}

// Validate checks that every attribute is within its documented range.
func (a Attributes) Validate() error {
	if a.Followers < 0 {
		return fmt.Errorf("followers must be >= 0, got %d", a.Followers)
	}
	if !inPercentRange(a.Engagement) {
		return fmt.Errorf("engagement must be within 0-100, got %v", a.Engagement)
	}
	if !inPercentRange(a.Authenticity) {
		return fmt.Errorf("authenticity must be within 0-100, got %v", a.Authenticity)
	}
	return nil
}

func inPercentRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

// Candidate returns the snapshot entry with the given ID.
func (s *Snapshot) Candidate(id int) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Terminal reports whether the run no longer has decision events scheduled.
func (s *Snapshot) Terminal() bool {
	return s.Phase == PhaseLocked || s.Phase == PhaseStopped
}
