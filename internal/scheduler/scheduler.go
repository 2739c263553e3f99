// Package scheduler implements the acceptance engine: it fires one randomly
// delayed decision per candidate and locks the run the moment the quota of
// accepted candidates is reached.
//
// All state changes (decision events, the ceiling timer, operator calls) run
// under a single mutex, one to completion before the next. That serialisation
// is what makes the lock exact: no two decisions can both observe quota-1
// accepts. Every scheduled event is tagged with the epoch it belongs to, and a
// new Start or Reset bumps the epoch, so a timer that fires after cancellation
// is absorbed without touching state.
package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/collab/internal/clock"
	"github.com/dyluth/collab/internal/pool"
	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/pkg/collab"
	"github.com/google/uuid"
)

// Source is the randomness used for jitter and decision draws.
// *math/rand.Rand and *math/rand/v2.Rand both satisfy it.
type Source interface {
	Float64() float64
}

// Config holds the timing of a run.
type Config struct {
	BaseDelay time.Duration // minimum delay before any decision
	Jitter    time.Duration // uniform random extra delay in [0, Jitter)
	Stagger   time.Duration // extra delay per dispatch position
	Ceiling   time.Duration // hard stop for a run that never reaches quota
}

// DefaultConfig returns the demo timings: 800ms + [0,7s) + i*120ms, 20s ceiling.
func DefaultConfig() Config {
	return Config{
		BaseDelay: 800 * time.Millisecond,
		Jitter:    7 * time.Second,
		Stagger:   120 * time.Millisecond,
		Ceiling:   20 * time.Second,
	}
}

// Validate checks the timings are usable.
func (c Config) Validate() error {
	if c.BaseDelay < 0 || c.Jitter < 0 || c.Stagger < 0 {
		return fmt.Errorf("delays must be >= 0 (base=%v jitter=%v stagger=%v)", c.BaseDelay, c.Jitter, c.Stagger)
	}
	if c.Ceiling <= 0 {
		return fmt.Errorf("ceiling must be > 0, got %v", c.Ceiling)
	}
	return nil
}

// Options configures a Scheduler. Random, Scorer and Model are required.
type Options struct {
	Config   Config
	Clock    clock.Clock // defaults to the real clock
	Random   Source
	Scorer   scoring.Scorer
	Model    scoring.DecisionModel
	Sinks    []Sink      // defaults to a LogSink
	Logger   *log.Logger // defaults to log.Default()
	Instance string      // label for log lines
}

// Scheduler owns at most one run at a time.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	rng      Source
	scorer   scoring.Scorer
	model    scoring.DecisionModel
	logger   *log.Logger
	instance string
	dispatch *dispatcher

	epoch  uint64
	seq    uint64 // last emitted event sequence number
	run    *runState
	closed bool
}

// runState is the single shared mutable resource: pool, lock state and timers
// for the current epoch. Guarded by Scheduler.mu.
type runState struct {
	id         string
	epoch      uint64
	quota      int
	pool       *pool.Pool
	phase      collab.Phase
	forced     bool
	stopReason collab.StopReason
	startedAt  time.Time
	decided    int // decision sequence counter

	queue    eventQueue
	timer    clock.Timer // armed for the queue head
	timerGen uint64
	armedAt  time.Time
	ceiling  clock.Timer

	done     chan struct{}
	doneShut bool
}

// New creates a scheduler. A missing random source, scorer or decision model is
// a construction fault.
func New(opts Options) (*Scheduler, error) {
	if opts.Random == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if opts.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if opts.Model == nil {
		return nil, fmt.Errorf("decision model is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = clock.New(1)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Instance == "" {
		opts.Instance = "default"
	}
	if len(opts.Sinks) == 0 {
		opts.Sinks = []Sink{&LogSink{Logger: opts.Logger, Instance: opts.Instance}}
	}

	return &Scheduler{
		cfg:      opts.Config,
		clock:    opts.Clock,
		rng:      opts.Random,
		scorer:   opts.Scorer,
		model:    opts.Model,
		logger:   opts.Logger,
		instance: opts.Instance,
		dispatch: newDispatcher(opts.Sinks, opts.Logger),
	}, nil
}

// Start begins a new epoch: outstanding events are cancelled, every candidate is
// reset to pending and one decision event is scheduled per candidate.
// quota must be >= 1; a pool smaller than quota is allowed and simply never locks.
func (s *Scheduler) Start(candidates []collab.Candidate, quota int) (*Run, error) {
	return s.begin(candidates, quota, false)
}

// Resume begins a new epoch that keeps already decided statuses and only
// schedules the pending candidates. If carried-over accepts already reach quota
// the run locks immediately.
func (s *Scheduler) Resume(candidates []collab.Candidate, quota int) (*Run, error) {
	return s.begin(candidates, quota, true)
}

func (s *Scheduler) begin(candidates []collab.Candidate, quota int, keepDecided bool) (*Run, error) {
	if quota < 1 {
		return nil, fmt.Errorf("%w: quota must be >= 1, got %d", collab.ErrInvalidState, quota)
	}

	p, err := pool.New(candidates)
	if err != nil {
		return nil, err
	}
	if !keepDecided {
		p.ResetStatuses()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: scheduler is closed", collab.ErrInvalidState)
	}

	s.retire()
	s.epoch++

	now := s.clock.Now()
	r := &runState{
		id:        uuid.New().String(),
		epoch:     s.epoch,
		quota:     quota,
		pool:      p,
		phase:     collab.PhaseRunning,
		startedAt: now,
		done:      make(chan struct{}),
	}
	for _, c := range p.Snapshot() {
		if c.DecidedSeq > r.decided {
			r.decided = c.DecidedSeq
		}
	}
	s.run = r

	for _, i := range p.Pending() {
		jitter := time.Duration(s.rng.Float64() * float64(s.cfg.Jitter))
		delay := s.cfg.BaseDelay + jitter + time.Duration(i)*s.cfg.Stagger
		r.queue.push(&decisionEvent{
			fireAt:      now.Add(delay),
			index:       i,
			candidateID: p.At(i).ID,
			epoch:       r.epoch,
		})
	}

	startType := collab.EventRunStarted
	if keepDecided {
		startType = collab.EventRunResumed
	}
	s.emit(r, startType, 0, "", "")
	s.logger.Printf("[Scheduler] Run %s started: epoch=%d quota=%d candidates=%d scheduled=%d",
		r.id, r.epoch, quota, p.Len(), r.queue.Len())

	switch {
	case p.AcceptedCount() >= quota:
		s.lock(r, false)
	case r.queue.Len() == 0:
		s.stop(r, collab.StopExhausted, collab.EventRunExhausted)
	default:
		epoch := r.epoch
		r.ceiling = s.clock.AfterFunc(s.cfg.Ceiling, func() { s.onCeiling(epoch) })
		s.arm(r)
	}

	return &Run{s: s, id: r.id, epoch: r.epoch}, nil
}

// Snapshot returns the current state, including the idle state after a reset.
func (s *Scheduler) Snapshot() collab.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Epoch returns the current epoch.
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Reset cancels whatever is running and returns to idle with an empty pool.
// Safe to call from any state.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Close cancels outstanding timers and flushes pending events to the sinks.
// The scheduler cannot be started again afterwards.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.retire()
	s.closed = true
	s.dispatch.close()
	s.mu.Unlock()

	s.dispatch.wait()
	return nil
}

// onTimer processes every decision event that is due. Stale callbacks (from a
// superseded epoch or a replaced timer) are no-ops.
func (s *Scheduler) onTimer(epoch, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.run
	if r == nil || r.epoch != epoch || r.timerGen != gen || r.phase != collab.PhaseRunning {
		return
	}
	r.timer = nil

	due := s.clock.Now()
	if r.armedAt.After(due) {
		due = r.armedAt
	}

	for r.phase == collab.PhaseRunning {
		head := r.queue.peek()
		if head == nil || head.fireAt.After(due) {
			break
		}
		s.decide(r, r.queue.pop())
	}

	if r.phase != collab.PhaseRunning {
		return
	}
	if r.queue.Len() == 0 {
		s.stop(r, collab.StopExhausted, collab.EventRunExhausted)
		return
	}
	s.arm(r)
}

// decide applies one decision event. Caller holds s.mu.
func (s *Scheduler) decide(r *runState, ev *decisionEvent) {
	if ev.epoch != s.epoch || r.phase != collab.PhaseRunning {
		return
	}

	c, ok := r.pool.Get(ev.candidateID)
	if !ok || c.Status.IsDecided() {
		// promoted by an operator before its event fired
		return
	}

	status := collab.StatusRejected
	if s.rng.Float64() < s.model.Probability(c) {
		status = collab.StatusAccepted
	}
	r.pool.SetStatus(c.ID, status)
	s.markDecided(r, c.ID, ev.fireAt)
	s.emit(r, collab.EventCandidateDecided, c.ID, status, "")

	if r.pool.AcceptedCount() >= r.quota {
		s.lock(r, false)
	}
}

func (s *Scheduler) onCeiling(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.run
	if r == nil || r.epoch != epoch || r.phase != collab.PhaseRunning {
		return
	}
	r.ceiling = nil
	s.logger.Printf("[Scheduler] Run %s hit ceiling after %v with %d/%d accepted",
		r.id, s.cfg.Ceiling, r.pool.AcceptedCount(), r.quota)
	s.stop(r, collab.StopCeiling, collab.EventRunExpired)
}

// arm points the single event timer at the queue head. Caller holds s.mu.
func (s *Scheduler) arm(r *runState) {
	head := r.queue.peek()
	if head == nil {
		s.disarm(r)
		return
	}
	if r.timer != nil && r.armedAt.Equal(head.fireAt) {
		return
	}
	s.disarm(r)

	r.timerGen++
	r.armedAt = head.fireAt
	epoch, gen := r.epoch, r.timerGen
	delay := head.fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	r.timer = s.clock.AfterFunc(delay, func() { s.onTimer(epoch, gen) })
}

func (s *Scheduler) disarm(r *runState) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

// cancelEvents drops every pending decision event and the ceiling timer.
// Caller holds s.mu.
func (s *Scheduler) cancelEvents(r *runState) {
	r.queue.clear()
	s.disarm(r)
	if r.ceiling != nil {
		r.ceiling.Stop()
		r.ceiling = nil
	}
}

// lock transitions to Locked and cancels the remaining events before the
// caller's critical section ends. Caller holds s.mu.
func (s *Scheduler) lock(r *runState, forced bool) {
	s.cancelEvents(r)
	r.phase = collab.PhaseLocked
	r.forced = forced
	r.stopReason = collab.StopNone

	evtType := collab.EventRunLocked
	if forced {
		evtType = collab.EventRunForceLocked
	}
	s.emit(r, evtType, 0, "", "")
	s.logger.Printf("[Scheduler] Run %s locked (forced=%v) with %d/%d accepted",
		r.id, forced, r.pool.AcceptedCount(), r.quota)
	s.closeDone(r)
}

// stop transitions to the terminal Stopped phase. Caller holds s.mu.
func (s *Scheduler) stop(r *runState, reason collab.StopReason, evtType collab.EventType) {
	s.cancelEvents(r)
	r.phase = collab.PhaseStopped
	r.stopReason = reason
	s.emit(r, evtType, 0, "", string(reason))
	s.closeDone(r)
}

// retire cancels the current run ahead of a new epoch. Caller holds s.mu.
func (s *Scheduler) retire() {
	if s.run == nil {
		return
	}
	s.cancelEvents(s.run)
	s.closeDone(s.run)
}

func (s *Scheduler) reset() {
	prev := s.run
	s.retire()
	s.epoch++
	s.run = nil

	if prev != nil {
		s.publish(&collab.Event{
			RunID: prev.id,
			Epoch: s.epoch,
			Type:  collab.EventRunReset,
			Quota: prev.quota,
			Phase: collab.PhaseIdle,
		})
	}
	s.logger.Printf("[Scheduler] Reset to idle (epoch=%d)", s.epoch)
}

func (s *Scheduler) closeDone(r *runState) {
	if !r.doneShut {
		r.doneShut = true
		close(r.done)
	}
}

func (s *Scheduler) markDecided(r *runState, id int, at time.Time) {
	r.decided++
	r.pool.MarkDecided(id, r.decided, at.Sub(r.startedAt).Milliseconds())
}

// emit queues a run event. Caller holds s.mu.
func (s *Scheduler) emit(r *runState, t collab.EventType, candidateID int, status collab.Status, reason string) {
	s.publish(&collab.Event{
		RunID:         r.id,
		Epoch:         r.epoch,
		Type:          t,
		CandidateID:   candidateID,
		Status:        status,
		AcceptedCount: r.pool.AcceptedCount(),
		Quota:         r.quota,
		Phase:         r.phase,
		Reason:        reason,
	})
}

func (s *Scheduler) publish(evt *collab.Event) {
	s.seq++
	evt.Seq = s.seq
	evt.TimestampMs = s.clock.Now().UnixMilli()
	s.dispatch.enqueue(evt)
}

// snapshot copies the current state. Caller holds s.mu.
func (s *Scheduler) snapshot() collab.Snapshot {
	r := s.run
	if r == nil {
		return collab.Snapshot{
			Epoch:      s.epoch,
			Phase:      collab.PhaseIdle,
			LockState:  collab.LockOpen,
			Candidates: []collab.Candidate{},
		}
	}

	lockState := collab.LockOpen
	if r.phase == collab.PhaseLocked {
		lockState = collab.LockLocked
	}

	return collab.Snapshot{
		RunID:         r.id,
		Epoch:         r.epoch,
		Phase:         r.phase,
		LockState:     lockState,
		Forced:        r.forced,
		StopReason:    r.stopReason,
		Quota:         r.quota,
		AcceptedCount: r.pool.AcceptedCount(),
		PendingEvents: r.queue.Len(),
		StartedAtMs:   r.startedAt.UnixMilli(),
		Candidates:    r.pool.Snapshot(),
	}
}
