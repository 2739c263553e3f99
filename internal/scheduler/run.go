package scheduler

import (
	"fmt"

	"github.com/dyluth/collab/pkg/collab"
)

// Run is a handle to one epoch of the scheduler. Once a later Start, Resume or
// Reset supersedes the epoch, mutating calls through the handle fail with
// collab.ErrInvalidState while Cancel and Reset become no-ops.
type Run struct {
	s     *Scheduler
	id    string
	epoch uint64
}

// ID returns the run's unique identifier.
func (h *Run) ID() string { return h.id }

// Epoch returns the epoch the handle belongs to.
func (h *Run) Epoch() uint64 { return h.epoch }

// Done is closed when the run reaches Locked or Stopped, or is superseded.
func (h *Run) Done() <-chan struct{} {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if r := h.current(); r != nil {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Snapshot returns a point-in-time copy of the run.
func (h *Run) Snapshot() (collab.Snapshot, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if h.current() == nil {
		return collab.Snapshot{}, h.staleErr()
	}
	return h.s.snapshot(), nil
}

// Cancel stops delivery of every pending decision event. Candidate statuses are
// untouched. Idempotent, and a no-op on a superseded handle.
func (h *Run) Cancel() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	r := h.current()
	if r == nil {
		return
	}
	if r.phase == collab.PhaseRunning {
		h.s.stop(r, collab.StopCancelled, collab.EventRunCancelled)
		h.s.logger.Printf("[Scheduler] Run %s cancelled with %d/%d accepted", r.id, r.pool.AcceptedCount(), r.quota)
		return
	}
	h.s.cancelEvents(r)
}

// Reset cancels the run and returns the scheduler to idle. A no-op on a
// superseded handle.
func (h *Run) Reset() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if h.current() == nil {
		return
	}
	h.s.reset()
}

// ForceLock cancels pending events and locks the run regardless of the accepted
// count. The accepted count may stay below quota; the lock does not reopen when
// a later reject leaves the run short.
func (h *Run) ForceLock() error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	r := h.current()
	if r == nil {
		return h.staleErr()
	}
	if r.phase == collab.PhaseLocked {
		return nil
	}
	h.s.lock(r, true)
	return nil
}

// RejectAndPromote rejects an accepted candidate and, if the run drops below
// quota, promotes the eligible candidate with the highest reach (lowest ID on
// ties). Promotion is deterministic and never re-schedules decision events. With
// no eligible candidate the run is left one short, which is not an error.
//
// Returns collab.ErrNotFound for an unknown ID and collab.ErrInvalidState when
// the candidate is not accepted or the handle is superseded.
func (h *Run) RejectAndPromote(id int) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	r := h.current()
	if r == nil {
		return h.staleErr()
	}

	status, ok := r.pool.StatusOf(id)
	if !ok {
		return fmt.Errorf("%w: candidate %d", collab.ErrNotFound, id)
	}
	if status != collab.StatusAccepted {
		return fmt.Errorf("%w: candidate %d is %s, not accepted", collab.ErrInvalidState, id, status)
	}

	s := h.s
	r.pool.SetStatus(id, collab.StatusRejected)
	r.pool.Dismiss(id)
	s.emit(r, collab.EventCandidateRejected, id, collab.StatusRejected, "operator")

	if r.pool.AcceptedCount() < r.quota {
		if next, found := r.pool.BestEligible(s.scorer, id); found {
			prev, _ := r.pool.StatusOf(next)
			r.pool.SetStatus(next, collab.StatusAccepted)
			if prev == collab.StatusPending {
				r.queue.remove(next)
				s.markDecided(r, next, s.clock.Now())
				if r.phase == collab.PhaseRunning {
					s.arm(r)
				}
			}
			s.emit(r, collab.EventCandidatePromoted, next, collab.StatusAccepted, fmt.Sprintf("replaces %d", id))
			s.logger.Printf("[Scheduler] Run %s: rejected %d, promoted %d", r.id, id, next)
		} else {
			s.logger.Printf("[Scheduler] Run %s: rejected %d, no eligible replacement (%d/%d accepted)",
				r.id, id, r.pool.AcceptedCount(), r.quota)
		}
	}

	s.relock(r)
	return nil
}

// relock re-derives the lock state from the accepted count after an operator
// change. Caller holds s.mu.
func (s *Scheduler) relock(r *runState) {
	accepted := r.pool.AcceptedCount()

	switch r.phase {
	case collab.PhaseRunning:
		if accepted >= r.quota {
			s.lock(r, false)
		} else if r.queue.Len() == 0 {
			s.stop(r, collab.StopExhausted, collab.EventRunExhausted)
		}
	case collab.PhaseLocked:
		if r.forced || accepted >= r.quota {
			return
		}
		// events were cancelled at lock time, so the run cannot refill on its own
		r.phase = collab.PhaseStopped
		r.stopReason = collab.StopExhausted
		s.emit(r, collab.EventRunUnlocked, 0, "", string(collab.StopExhausted))
	}
}

// current returns the run if the handle still owns the scheduler's epoch.
// Caller holds s.mu.
func (h *Run) current() *runState {
	r := h.s.run
	if r == nil || r.epoch != h.epoch || h.s.epoch != h.epoch {
		return nil
	}
	return r
}

func (h *Run) staleErr() error {
	return fmt.Errorf("%w: run %s (epoch %d) has been superseded", collab.ErrInvalidState, h.id, h.epoch)
}
