package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrdering(t *testing.T) {
	base := time.Unix(0, 0)
	var q eventQueue

	q.push(&decisionEvent{fireAt: base.Add(2 * time.Second), index: 0, candidateID: 10})
	q.push(&decisionEvent{fireAt: base.Add(time.Second), index: 3, candidateID: 13})
	q.push(&decisionEvent{fireAt: base.Add(time.Second), index: 1, candidateID: 11})
	q.push(&decisionEvent{fireAt: base.Add(3 * time.Second), index: 2, candidateID: 12})

	require.Equal(t, 11, q.peek().candidateID)

	var got []int
	for q.Len() > 0 {
		got = append(got, q.pop().candidateID)
	}
	assert.Equal(t, []int{11, 13, 10, 12}, got)
	assert.Nil(t, q.peek())
}

func TestEventQueueRemove(t *testing.T) {
	base := time.Unix(0, 0)
	var q eventQueue
	for i := 0; i < 5; i++ {
		q.push(&decisionEvent{fireAt: base.Add(time.Duration(i) * time.Second), index: i, candidateID: i + 1})
	}

	assert.True(t, q.remove(1))
	assert.False(t, q.remove(1))
	assert.True(t, q.remove(4))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.pop().candidateID)
	assert.Equal(t, 3, q.pop().candidateID)

	q.clear()
	assert.Equal(t, 0, q.Len())
}
