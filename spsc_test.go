package reactor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFDQueuePushPopFIFO(t *testing.T) {
	q := newFDQueue(4)
	require.True(t, q.push(10))
	require.True(t, q.push(20))

	fd, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, 10, fd)

	fd, ok = q.pop()
	require.True(t, ok)
	require.Equal(t, 20, fd)

	_, ok = q.pop()
	require.False(t, ok)
}

func TestFDQueueRoundsUpToPowerOfTwo(t *testing.T) {
	q := newFDQueue(5)
	require.Equal(t, 8, len(q.buf))
}

func TestFDQueueRejectsPushWhenFull(t *testing.T) {
	q := newFDQueue(2) // capacity rounds up to 2
	require.True(t, q.push(1))
	require.True(t, q.push(2))
	require.False(t, q.push(3))

	fd, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, 1, fd)

	require.True(t, q.push(3))
}

func TestFDQueueConcurrentProducerConsumer(t *testing.T) {
	q := newFDQueue(1024)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.push(i) {
				// full: spin until the consumer drains one
			}
		}
	}()

	got := make([]int, 0, n)
	for len(got) < n {
		if fd, ok := q.pop(); ok {
			got = append(got, fd)
		}
	}
	wg.Wait()

	for i, fd := range got {
		require.Equal(t, i, fd)
	}
}
