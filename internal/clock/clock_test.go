package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b1") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b2") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b1", "b2"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, fired)
	assert.Equal(t, time.Unix(3, 0), c.Now())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false

	timer := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeCallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var at []time.Time

	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(time.Second, func() { at = append(at, c.Now()) })
	})

	c.Advance(5 * time.Second)
	require.Len(t, at, 2)
	assert.Equal(t, time.Unix(1, 0), at[0])
	assert.Equal(t, time.Unix(2, 0), at[1])
	assert.Equal(t, time.Unix(5, 0), c.Now())
}

func TestRealScale(t *testing.T) {
	assert.Equal(t, 1.0, New(0).Scale)
	assert.Equal(t, 500*time.Millisecond, New(2).ToReal(time.Second))
	assert.Equal(t, time.Second, New(1).ToReal(time.Second))

	scaled := New(1000)
	start := scaled.Now()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, scaled.Now().Sub(start), 10*time.Second, "scaled time runs 1000x faster")

	var n atomic.Int32
	done := make(chan struct{})
	New(1000).AfterFunc(time.Second, func() {
		n.Add(1)
		close(done)
	})

	select {
	case <-done:
		assert.Equal(t, int32(1), n.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("scaled timer did not fire")
	}
}
