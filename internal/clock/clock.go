// Package clock abstracts timers so the scheduler can run on wall-clock time,
// on compressed simulation time, or on a manually advanced fake in tests.
package clock

import (
	"time"
)

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or was already stopped. Stop does not wait for a callback
	// that is already running.
	Stop() bool
}

// Clock creates timers and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the time package. Scale compresses durations:
// with Scale 60 a one-minute delay fires after one real second, and Now
// advances one simulated minute per real second from the clock's origin.
type Real struct {
	Scale  float64
	origin time.Time
}

// New returns a real clock with the given scale (values <= 0 mean 1).
func New(scale float64) *Real {
	if scale <= 0 {
		scale = 1
	}
	return &Real{Scale: scale, origin: time.Now()}
}

func (r *Real) Now() time.Time {
	now := time.Now()
	if r.Scale <= 0 || r.Scale == 1 || r.origin.IsZero() {
		return now
	}
	elapsed := now.Sub(r.origin)
	return r.origin.Add(time.Duration(float64(elapsed) * r.Scale))
}

func (r *Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(r.ToReal(d), f)
}

// ToReal converts a simulated duration to the wall-clock duration it takes.
func (r *Real) ToReal(d time.Duration) time.Duration {
	if r.Scale <= 0 || r.Scale == 1 {
		return d
	}
	return time.Duration(float64(d) / r.Scale)
}
