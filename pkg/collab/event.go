package collab

import "fmt"

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventRunStarted        EventType = "run_started"
	EventRunResumed        EventType = "run_resumed"
	EventCandidateDecided  EventType = "candidate_decided"
	EventRunLocked         EventType = "run_locked"
	EventRunForceLocked    EventType = "run_force_locked"
	EventRunUnlocked       EventType = "run_unlocked"
	EventRunExpired        EventType = "run_expired"
	EventRunExhausted      EventType = "run_exhausted"
	EventRunCancelled      EventType = "run_cancelled"
	EventRunReset          EventType = "run_reset"
	EventCandidateRejected EventType = "candidate_rejected"
	EventCandidatePromoted EventType = "candidate_promoted"
)

// Event describes a single state change of a run.
// Seq is assigned by the scheduler and increases by one per emitted event.
type Event struct {
	Seq           uint64    `json:"seq"`
	RunID         string    `json:"run_id"`
	Epoch         uint64    `json:"epoch"`
	Type          EventType `json:"type"`
	CandidateID   int       `json:"candidate_id,omitempty"` // Set for candidate_* events (IDs start at 1)
	Status        Status    `json:"status,omitempty"`       // Candidate status after the change
	AcceptedCount int       `json:"accepted_count"`
	Quota         int       `json:"quota"`
	Phase         Phase     `json:"phase"`
	Reason        string    `json:"reason,omitempty"`
	TimestampMs   int64     `json:"timestamp_ms"`
}

// Validate checks if the EventType is a known value.
func (t EventType) Validate() error {
	switch t {
	case EventRunStarted, EventRunResumed, EventCandidateDecided, EventRunLocked,
		EventRunForceLocked, EventRunUnlocked, EventRunExpired, EventRunExhausted,
		EventRunCancelled, EventRunReset, EventCandidateRejected, EventCandidatePromoted:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Validate checks the event has the fields every consumer relies on.
func (e *Event) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return err
	}
	if e.RunID == "" {
		return fmt.Errorf("event %d: run ID cannot be empty", e.Seq)
	}
	return nil
}
