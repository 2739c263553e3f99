package scheduler

import (
	"context"
	"io"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/collab/internal/clock"
	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/internal/testutil"
	"github.com/dyluth/collab/pkg/collab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Sink that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []*collab.Event
}

func (r *recorder) Publish(_ context.Context, evt *collab.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) all() []*collab.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*collab.Event(nil), r.events...)
}

func (r *recorder) types() []collab.EventType {
	var out []collab.EventType
	for _, e := range r.all() {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	s     *Scheduler
	clock *clock.Fake
	rec   *recorder
}

// newHarness builds a scheduler on a fake clock with deterministic timings:
// candidate i fires at 800ms + i*120ms when the source yields 0.
func newHarness(t *testing.T, rng Source, model scoring.DecisionModel, mutate ...func(*Config)) *harness {
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	fake := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{}
	s, err := New(Options{
		Config: cfg,
		Clock:  fake,
		Random: rng,
		Scorer: scoring.NewReach(nil),
		Model:  model,
		Sinks:  []Sink{rec},
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return &harness{s: s, clock: fake, rec: rec}
}

// flush drains the dispatcher so recorded events are complete.
func (h *harness) flush(t *testing.T) {
	require.NoError(t, h.s.Close())
}

func snapshot(t *testing.T, run *Run) collab.Snapshot {
	snap, err := run.Snapshot()
	require.NoError(t, err)
	return snap
}

func statusOf(t *testing.T, snap collab.Snapshot, id int) collab.Status {
	c, ok := snap.Candidate(id)
	require.True(t, ok, "candidate %d missing", id)
	return c.Status
}

func TestNewValidatesOptions(t *testing.T) {
	base := Options{
		Config: DefaultConfig(),
		Random: testutil.Constant(0),
		Scorer: scoring.NewReach(nil),
		Model:  scoring.DefaultHeuristic(),
		Logger: log.New(io.Discard, "", 0),
	}

	tests := []struct {
		name   string
		mutate func(o *Options)
		msg    string
	}{
		{"missing random source", func(o *Options) { o.Random = nil }, "random source is required"},
		{"missing scorer", func(o *Options) { o.Scorer = nil }, "scorer is required"},
		{"missing model", func(o *Options) { o.Model = nil }, "decision model is required"},
		{"zero ceiling", func(o *Options) { o.Config.Ceiling = 0 }, "ceiling must be > 0"},
		{"negative jitter", func(o *Options) { o.Config.Jitter = -time.Second }, "delays must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := New(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("valid options", func(t *testing.T) {
		s, err := New(base)
		require.NoError(t, err)
		assert.NoError(t, s.Close())
	})
}

// Three certain accepts with quota 2: the first two lock the run and the third
// event never changes anything.
func TestLocksExactlyAtQuota(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(3), 2)
	require.NoError(t, err)

	snap := snapshot(t, run)
	assert.Equal(t, collab.PhaseRunning, snap.Phase)
	assert.Equal(t, 3, snap.PendingEvents)
	for _, c := range snap.Candidates {
		assert.Equal(t, collab.StatusPending, c.Status, "start must not change statuses synchronously")
	}

	h.clock.Advance(800 * time.Millisecond)
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 1))
	assert.Equal(t, collab.LockOpen, snap.LockState)

	h.clock.Advance(120 * time.Millisecond)
	snap = snapshot(t, run)
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
	assert.Equal(t, collab.LockLocked, snap.LockState)
	assert.False(t, snap.Forced)
	assert.Equal(t, 2, snap.AcceptedCount)
	assert.Equal(t, 0, snap.PendingEvents)
	assert.Equal(t, 0, h.clock.Pending(), "lock must cancel the event timer and the ceiling")

	h.clock.Advance(time.Minute)
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusPending, statusOf(t, snap, 3))
	assert.Equal(t, 2, snap.AcceptedCount)

	select {
	case <-run.Done():
	default:
		t.Fatal("done channel should be closed after lock")
	}

	h.flush(t)
	assert.Equal(t, []collab.EventType{
		collab.EventRunStarted,
		collab.EventCandidateDecided,
		collab.EventCandidateDecided,
		collab.EventRunLocked,
	}, h.rec.types())
}

// Property: whatever the seed, an organically locked run holds exactly quota
// accepts, no run ever exceeds quota, and no decision follows the lock.
func TestQuotaExactnessAcrossSeeds(t *testing.T) {
	for seed := int64(1); seed <= 60; seed++ {
		rng := rand.New(rand.NewSource(seed))
		size := 1 + rng.Intn(25)
		quota := 1 + rng.Intn(size)

		pool := make([]collab.Candidate, size)
		for i := range pool {
			pool[i] = testutil.Candidate(i+1, int64(30000+rng.Intn(170000)), 2+rng.Float64()*6, 60+rng.Float64()*40)
		}

		h := newHarness(t, rng, scoring.DefaultHeuristic())
		run, err := h.s.Start(pool, quota)
		require.NoError(t, err)

		h.clock.Advance(30 * time.Second)
		snap := snapshot(t, run)

		require.True(t, snap.Terminal(), "seed %d: run must be terminal after the ceiling", seed)
		assert.LessOrEqual(t, snap.AcceptedCount, quota, "seed %d", seed)
		if snap.Phase == collab.PhaseLocked {
			assert.Equal(t, quota, snap.AcceptedCount, "seed %d", seed)
		}

		h.flush(t)
		locked := false
		for _, evt := range h.rec.all() {
			if evt.Type == collab.EventRunLocked {
				locked = true
			}
			if locked {
				assert.NotEqual(t, collab.EventCandidateDecided, evt.Type, "seed %d: decision after lock", seed)
			}
		}
	}
}

func TestEventsFireInTimeThenIndexOrder(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(0), func(c *Config) {
		c.Stagger = 0
	})

	run, err := h.s.Start(testutil.Pool(5), 5)
	require.NoError(t, err)

	h.clock.Advance(800 * time.Millisecond)
	snap := snapshot(t, run)
	for i, c := range snap.Candidates {
		assert.Equal(t, collab.StatusRejected, c.Status)
		assert.Equal(t, i+1, c.DecidedSeq, "simultaneous events are ordered by pool position")
		assert.Equal(t, int64(800), c.DecidedAtMs)
	}
	assert.Equal(t, collab.PhaseStopped, snap.Phase)
	assert.Equal(t, collab.StopExhausted, snap.StopReason)
}

func TestJitterAndStaggerShapeDelays(t *testing.T) {
	// jitter draws 0.5 for candidate 1 and 0 for candidate 2; decisions draw 0
	rng := testutil.NewSequence(0.5, 0, 0, 0)
	h := newHarness(t, rng, scoring.Fixed(1), func(c *Config) {
		c.BaseDelay = time.Second
		c.Jitter = 2 * time.Second
		c.Stagger = 500 * time.Millisecond
	})

	run, err := h.s.Start(testutil.Pool(2), 2)
	require.NoError(t, err)

	// candidate 1 at 1s+1s+0 = 2s, candidate 2 at 1s+0+500ms = 1.5s
	h.clock.Advance(1500 * time.Millisecond)
	snap := snapshot(t, run)
	assert.Equal(t, collab.StatusPending, statusOf(t, snap, 1))
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 2))

	h.clock.Advance(500 * time.Millisecond)
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 1))
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
}

func TestUnderSuppliedPoolStopsWithoutLocking(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(2), 5)
	require.NoError(t, err)

	h.clock.Advance(5 * time.Second)
	snap := snapshot(t, run)
	assert.Equal(t, collab.PhaseStopped, snap.Phase)
	assert.Equal(t, collab.StopExhausted, snap.StopReason)
	assert.Equal(t, collab.LockOpen, snap.LockState)
	assert.Equal(t, 2, snap.AcceptedCount)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestCeilingBoundsRunDuration(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(0), func(c *Config) {
		c.BaseDelay = 30 * time.Second
		c.Ceiling = 20 * time.Second
	})

	run, err := h.s.Start(testutil.Pool(3), 1)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Second)
	snap := snapshot(t, run)
	assert.Equal(t, collab.PhaseStopped, snap.Phase)
	assert.Equal(t, collab.StopCeiling, snap.StopReason)
	assert.Equal(t, 0, snap.PendingEvents)
	assert.Equal(t, 0, h.clock.Pending())

	h.clock.Advance(time.Minute)
	for _, c := range snapshot(t, run).Candidates {
		assert.Equal(t, collab.StatusPending, c.Status, "no event fires after the ceiling")
	}

	select {
	case <-run.Done():
	default:
		t.Fatal("done channel should be closed after the ceiling")
	}
}

func TestRealClockReachesTerminalState(t *testing.T) {
	s, err := New(Options{
		Config: DefaultConfig(),
		Clock:  clock.New(1000),
		Random: rand.New(rand.NewSource(7)),
		Scorer: scoring.NewReach(nil),
		Model:  scoring.Fixed(0),
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	defer s.Close()

	run, err := s.Start(testutil.Pool(20), 5)
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not reach a terminal state")
	}

	snap := snapshot(t, run)
	assert.True(t, snap.Terminal())
	assert.Equal(t, 0, snap.AcceptedCount)
}

// checkCounts asserts the accepted count never overshoots quota and always
// matches the candidates marked accepted.
func checkCounts(t *testing.T, snap collab.Snapshot) {
	accepted := 0
	for _, c := range snap.Candidates {
		if c.Status == collab.StatusAccepted {
			accepted++
		}
	}
	assert.LessOrEqual(t, snap.AcceptedCount, snap.Quota)
	assert.Equal(t, accepted, snap.AcceptedCount)
}

func TestConcurrentRejectsDuringRealClockRun(t *testing.T) {
	const (
		poolSize = 90
		quota    = 30
		workers  = 8
	)

	for seed := int64(1); seed <= 5; seed++ {
		t.Run("seed "+strconv.FormatInt(seed, 10), func(t *testing.T) {
			s, err := New(Options{
				Config: DefaultConfig(),
				Clock:  clock.New(200),
				Random: rand.New(rand.NewSource(seed)),
				Scorer: scoring.NewReach(nil),
				Model:  scoring.DefaultHeuristic(),
				Logger: log.New(io.Discard, "", 0),
			})
			require.NoError(t, err)
			defer s.Close()

			run, err := s.Start(testutil.Pool(poolSize), quota)
			require.NoError(t, err)

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; ; i++ {
						select {
						case <-run.Done():
							return
						default:
						}

						snap, err := run.Snapshot()
						if !assert.NoError(t, err) {
							return
						}
						checkCounts(t, snap)

						// every few rounds, reject one accepted candidate
						if (i+w)%4 != 0 {
							continue
						}
						for _, c := range snap.Candidates {
							if c.Status != collab.StatusAccepted {
								continue
							}
							err := run.RejectAndPromote(c.ID)
							if err != nil {
								// another worker may have rejected it first
								assert.True(t, collab.IsInvalidState(err), "unexpected error: %v", err)
							}
							break
						}
						time.Sleep(time.Millisecond)
					}
				}(w)
			}

			select {
			case <-run.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("run did not reach a terminal state")
			}
			wg.Wait()

			snap := snapshot(t, run)
			assert.True(t, snap.Terminal())
			checkCounts(t, snap)
			if snap.Phase == collab.PhaseLocked {
				assert.Equal(t, quota, snap.AcceptedCount)
			}
		})
	}
}

func TestNewStartSupersedesPreviousEpoch(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	first, err := h.s.Start(testutil.Pool(3), 3)
	require.NoError(t, err)
	h.clock.Advance(800 * time.Millisecond)

	staleEpoch := first.Epoch()
	h.s.mu.Lock()
	staleGen := h.s.run.timerGen
	h.s.mu.Unlock()

	second, err := h.s.Start(testutil.Pool(3), 3)
	require.NoError(t, err)
	assert.Equal(t, staleEpoch+1, second.Epoch())

	snap := snapshot(t, second)
	for _, c := range snap.Candidates {
		assert.Equal(t, collab.StatusPending, c.Status, "start resets every candidate")
	}

	// a timer callback from the old epoch arriving late is absorbed
	h.s.onTimer(staleEpoch, staleGen)
	h.s.onCeiling(staleEpoch)
	snap = snapshot(t, second)
	assert.Equal(t, 0, snap.AcceptedCount)
	assert.Equal(t, collab.PhaseRunning, snap.Phase)

	_, err = first.Snapshot()
	assert.True(t, collab.IsInvalidState(err))
	assert.True(t, collab.IsInvalidState(first.RejectAndPromote(1)))
	assert.True(t, collab.IsInvalidState(first.ForceLock()))

	select {
	case <-first.Done():
	default:
		t.Fatal("superseded run should report done")
	}
}

func TestStaleDecisionEventIsNoop(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(2), 2)
	require.NoError(t, err)

	h.s.mu.Lock()
	h.s.decide(h.s.run, &decisionEvent{candidateID: 1, epoch: run.Epoch() - 1})
	h.s.mu.Unlock()

	assert.Equal(t, 0, snapshot(t, run).AcceptedCount)
}

func TestStartValidation(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	_, err := h.s.Start(testutil.Pool(2), 0)
	require.Error(t, err)
	assert.True(t, collab.IsInvalidState(err))

	bad := testutil.Pool(2)
	bad[1].ID = bad[0].ID
	_, err = h.s.Start(bad, 1)
	require.Error(t, err)
	assert.True(t, collab.IsInvalidState(err))

	assert.Equal(t, uint64(0), h.s.Epoch(), "rejected starts do not open an epoch")
}

func TestCancelIsIdempotent(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(4), 3)
	require.NoError(t, err)
	h.clock.Advance(800 * time.Millisecond)

	run.Cancel()
	first := snapshot(t, run)
	assert.Equal(t, collab.PhaseStopped, first.Phase)
	assert.Equal(t, collab.StopCancelled, first.StopReason)
	assert.Equal(t, 1, first.AcceptedCount, "cancel keeps statuses")

	run.Cancel()
	run.Cancel()
	h.clock.Advance(time.Minute)
	assert.Equal(t, first, snapshot(t, run))

	h.flush(t)
	cancelled := 0
	for _, typ := range h.rec.types() {
		if typ == collab.EventRunCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
}

func TestCancelAfterResetIsNoop(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(2), 2)
	require.NoError(t, err)

	run.Reset()
	idle := h.s.Snapshot()
	assert.Equal(t, collab.PhaseIdle, idle.Phase)
	assert.Empty(t, idle.Candidates)
	assert.Equal(t, run.Epoch()+1, idle.Epoch)

	run.Cancel()
	run.Reset()
	assert.Equal(t, idle, h.s.Snapshot())

	h.s.Reset()
	assert.Equal(t, idle.Epoch+1, h.s.Snapshot().Epoch, "reset always bumps the epoch")
	assert.Equal(t, 0, h.clock.Pending())
}

func TestRejectAndPromote(t *testing.T) {
	setup := func(t *testing.T) (*harness, *Run) {
		h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))
		run, err := h.s.Start(testutil.Pool(5), 2)
		require.NoError(t, err)
		h.clock.Advance(920 * time.Millisecond)
		require.Equal(t, collab.PhaseLocked, snapshot(t, run).Phase)
		return h, run
	}

	t.Run("preserves accepted count", func(t *testing.T) {
		_, run := setup(t)

		require.NoError(t, run.RejectAndPromote(1))
		snap := snapshot(t, run)
		assert.Equal(t, 2, snap.AcceptedCount)
		assert.Equal(t, collab.StatusRejected, statusOf(t, snap, 1))
		assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 3), "highest reach among non-accepted")
		assert.Equal(t, collab.PhaseLocked, snap.Phase)
	})

	t.Run("is deterministic", func(t *testing.T) {
		_, a := setup(t)
		_, b := setup(t)

		require.NoError(t, a.RejectAndPromote(2))
		require.NoError(t, b.RejectAndPromote(2))

		sa, sb := snapshot(t, a), snapshot(t, b)
		for i := range sa.Candidates {
			assert.Equal(t, sa.Candidates[i].Status, sb.Candidates[i].Status)
		}
	})

	t.Run("never re-promotes a dismissed candidate", func(t *testing.T) {
		_, run := setup(t)

		require.NoError(t, run.RejectAndPromote(1)) // promotes 3
		require.NoError(t, run.RejectAndPromote(3)) // 1 is dismissed, promotes 4
		snap := snapshot(t, run)
		assert.Equal(t, collab.StatusRejected, statusOf(t, snap, 1))
		assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 4))
		assert.Equal(t, 2, snap.AcceptedCount)
	})

	t.Run("rejects non-accepted candidate", func(t *testing.T) {
		_, run := setup(t)

		err := run.RejectAndPromote(4)
		require.Error(t, err)
		assert.True(t, collab.IsInvalidState(err))
		assert.Contains(t, err.Error(), "not accepted")
	})

	t.Run("unknown candidate", func(t *testing.T) {
		_, run := setup(t)

		err := run.RejectAndPromote(99)
		require.Error(t, err)
		assert.True(t, collab.IsNotFound(err))
	})

	t.Run("no eligible replacement leaves run short", func(t *testing.T) {
		h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))
		run, err := h.s.Start(testutil.Pool(2), 2)
		require.NoError(t, err)
		h.clock.Advance(time.Second)
		require.Equal(t, collab.PhaseLocked, snapshot(t, run).Phase)

		require.NoError(t, run.RejectAndPromote(1))
		snap := snapshot(t, run)
		assert.Equal(t, 1, snap.AcceptedCount)
		assert.Equal(t, collab.PhaseStopped, snap.Phase)
		assert.Equal(t, collab.StopExhausted, snap.StopReason)
		assert.Equal(t, collab.LockOpen, snap.LockState)
		assert.Equal(t, 0, h.clock.Pending(), "reject never re-schedules decision events")
	})
}

// quota 1, A and B both accepted from a carried-over pool: rejecting A leaves
// B, which already satisfies quota, so nothing is promoted.
func TestRejectWithCarriedOverOverflow(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	a := testutil.WithStatus(testutil.Candidate(1, 200000, 5, 90), collab.StatusAccepted)
	b := testutil.WithStatus(testutil.Candidate(2, 100000, 5, 90), collab.StatusAccepted)
	c := testutil.Candidate(3, 500000, 5, 90)

	run, err := h.s.Resume([]collab.Candidate{a, b, c}, 1)
	require.NoError(t, err)

	snap := snapshot(t, run)
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
	assert.Equal(t, 2, snap.AcceptedCount)

	require.NoError(t, run.RejectAndPromote(1))
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusRejected, statusOf(t, snap, 1))
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 2))
	assert.Equal(t, collab.StatusPending, statusOf(t, snap, 3))
	assert.Equal(t, 1, snap.AcceptedCount)
	assert.Equal(t, collab.LockLocked, snap.LockState)
}

func TestResumeSchedulesOnlyPending(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	pool := testutil.Pool(4)
	pool[0] = testutil.WithStatus(pool[0], collab.StatusAccepted)
	pool[0].DecidedSeq = 1
	pool[1] = testutil.WithStatus(pool[1], collab.StatusRejected)
	pool[1].DecidedSeq = 2

	run, err := h.s.Resume(pool, 3)
	require.NoError(t, err)

	snap := snapshot(t, run)
	assert.Equal(t, 2, snap.PendingEvents)
	assert.Equal(t, 1, snap.AcceptedCount)

	h.clock.Advance(10 * time.Second)
	snap = snapshot(t, run)
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
	assert.Equal(t, 3, snap.AcceptedCount)
	assert.Equal(t, collab.StatusRejected, statusOf(t, snap, 2))

	c3, _ := snap.Candidate(3)
	assert.Equal(t, 3, c3.DecidedSeq, "decision numbering continues after carried-over decisions")

	h.flush(t)
	assert.Equal(t, collab.EventRunResumed, h.rec.types()[0])
}

func TestPromotingPendingCandidateWhileRunning(t *testing.T) {
	// candidate 1 accepts, candidate 2 rejects, the rest stay pending
	h := newHarness(t, testutil.NewSequence(0, 0, 0, 0, 0, 0.1, 0.9), scoring.Fixed(0.5))

	run, err := h.s.Start(testutil.Pool(5), 3)
	require.NoError(t, err)

	h.clock.Advance(920 * time.Millisecond)
	snap := snapshot(t, run)
	require.Equal(t, collab.StatusAccepted, statusOf(t, snap, 1))
	require.Equal(t, collab.StatusRejected, statusOf(t, snap, 2))
	require.Equal(t, 3, snap.PendingEvents)

	// rejecting 1 promotes 2 (a rejected candidate with the highest reach)
	require.NoError(t, run.RejectAndPromote(1))
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 2))
	assert.Equal(t, collab.PhaseRunning, snap.Phase)

	// rejecting 2 promotes pending 3, whose event is withdrawn
	require.NoError(t, run.RejectAndPromote(2))
	snap = snapshot(t, run)
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 3))
	assert.Equal(t, 2, snap.PendingEvents)
	c3, _ := snap.Candidate(3)
	decidedSeq := c3.DecidedSeq

	h.clock.Advance(10 * time.Second)
	snap = snapshot(t, run)
	c3, _ = snap.Candidate(3)
	assert.Equal(t, collab.StatusAccepted, c3.Status)
	assert.Equal(t, decidedSeq, c3.DecidedSeq, "promoted candidate is not decided twice")
	assert.LessOrEqual(t, snap.AcceptedCount, 3)
	assert.True(t, snap.Terminal())
}

func TestForceLock(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(4), 3)
	require.NoError(t, err)
	h.clock.Advance(800 * time.Millisecond)

	require.NoError(t, run.ForceLock())
	snap := snapshot(t, run)
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
	assert.True(t, snap.Forced)
	assert.Equal(t, 1, snap.AcceptedCount, "forced lock may sit below quota")
	assert.Equal(t, 0, h.clock.Pending())

	require.NoError(t, run.ForceLock(), "force lock is idempotent")

	// a reject that promotes keeps the count; the lock stays forced
	require.NoError(t, run.RejectAndPromote(1))
	snap = snapshot(t, run)
	assert.Equal(t, collab.PhaseLocked, snap.Phase)
	assert.Equal(t, collab.StatusAccepted, statusOf(t, snap, 2))
	assert.Equal(t, 1, snap.AcceptedCount)

	h.clock.Advance(time.Minute)
	assert.Equal(t, snap, snapshot(t, run))
}

func TestForceLockAfterOrganicLockIsNoop(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(2), 1)
	require.NoError(t, err)
	h.clock.Advance(time.Second)

	require.NoError(t, run.ForceLock())
	assert.False(t, snapshot(t, run).Forced)
}

func TestEventsCarrySequenceAndRun(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))

	run, err := h.s.Start(testutil.Pool(3), 2)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	require.NoError(t, run.RejectAndPromote(1))
	run.Reset()

	h.flush(t)
	events := h.rec.all()
	require.NotEmpty(t, events)
	for i, evt := range events {
		assert.Equal(t, uint64(i+1), evt.Seq)
		assert.Equal(t, run.ID(), evt.RunID)
		assert.NoError(t, evt.Validate())
	}
	assert.Equal(t, []collab.EventType{
		collab.EventRunStarted,
		collab.EventCandidateDecided,
		collab.EventCandidateDecided,
		collab.EventRunLocked,
		collab.EventCandidateRejected,
		collab.EventCandidatePromoted,
		collab.EventRunReset,
	}, h.rec.types())

	promoted := events[5]
	assert.Equal(t, 3, promoted.CandidateID)
	assert.Equal(t, 2, promoted.AcceptedCount)
}

func TestStartAfterCloseFails(t *testing.T) {
	h := newHarness(t, testutil.Constant(0), scoring.Fixed(1))
	require.NoError(t, h.s.Close())
	require.NoError(t, h.s.Close())

	_, err := h.s.Start(testutil.Pool(1), 1)
	require.Error(t, err)
	assert.True(t, collab.IsInvalidState(err))
}
