package coroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResumeYieldPingPong(t *testing.T) {
	var trace []string
	co := Create(func(co *Coroutine) {
		trace = append(trace, "enter")
		co.Yield(Outcome(1))
		trace = append(trace, "resumed-1")
		co.Yield(Outcome(2))
		trace = append(trace, "resumed-2")
	})

	o := co.Resume()
	require.Equal(t, Outcome(1), o)
	require.Equal(t, []string{"enter"}, trace)

	o = co.Resume()
	require.Equal(t, Outcome(2), o)
	require.Equal(t, []string{"enter", "resumed-1"}, trace)

	co.Free()
}

func TestDeferScopedByGeneration(t *testing.T) {
	var ran []string
	co := Create(func(co *Coroutine) {
		for i := 0; i < 2; i++ {
			gen := co.Generation()
			idx := i
			co.Defer(func() { ran = append(ran, "scoped") })
			_ = idx
			co.RunDeferred(gen)
			co.Yield(Outcome(0))
		}
	})

	co.Resume()
	require.Equal(t, []string{"scoped"}, ran)

	co.Resume()
	require.Equal(t, []string{"scoped", "scoped"}, ran)

	co.Free()
}

func TestFreeRunsOutstandingCleanups(t *testing.T) {
	var ran bool
	co := Create(func(co *Coroutine) {
		co.Defer(func() { ran = true })
		co.Yield(Outcome(0))
	})
	co.Resume()
	require.False(t, ran)
	co.Free()
	require.True(t, ran)
}

func TestFreeUnblocksParkedCoroutine(t *testing.T) {
	entered := make(chan struct{})
	co := Create(func(co *Coroutine) {
		close(entered)
		co.Yield(Outcome(0))
		// Yield returns once Free closes done and the body then exits;
		// we just need the goroutine to not leak a blocked send.
	})
	co.Resume()
	<-entered
	co.Free()
	require.True(t, co.Closed())

	select {
	case <-time.After(100 * time.Millisecond):
	}
}
