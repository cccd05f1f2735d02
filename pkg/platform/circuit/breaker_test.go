package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded outcome and the state expected after it.
type step struct {
	fail     bool
	wantOpen bool
	opened   bool
	closed   bool
}

func replay(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, s := range steps {
		var change StateChange
		if s.fail {
			_, change = b.RecordFailure()
		} else {
			_, change = b.RecordSuccess()
		}
		require.Equal(t, s.wantOpen, b.IsOpen(), "step %d", i)
		assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
		assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("notifications")
	assert.Equal(t, "notifications", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "opens on the fifth failure by default")
	b.RecordFailure()
	assert.Equal(t, "open", b.State().String())
}

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens after consecutive failures",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
				{fail: true, wantOpen: true},
			},
		},
		{
			name: "success while closed resets the failure streak",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true},
				{fail: true},
				{},
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
			},
		},
		{
			name: "closes after consecutive successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, opened: true},
				{wantOpen: true},
				{closed: true},
			},
		},
		{
			name: "failure while open restarts the success streak",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps: []step{
				{fail: true, wantOpen: true, opened: true},
				{wantOpen: true},
				{wantOpen: true},
				{fail: true, wantOpen: true},
				{wantOpen: true},
				{wantOpen: true},
				{closed: true},
			},
		},
		{
			name: "non-positive thresholds keep defaults",
			opts: []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replay(t, New("notifications", tt.opts...), tt.steps)
		})
	}
}

func TestBreaker_FallbackSignal(t *testing.T) {
	b := New("notifications", WithFailureThreshold(2))

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback, "closed breaker reports the primary failure")
	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback)

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary, "one success is not enough to close")
}

func TestBreaker_Reset(t *testing.T) {
	b := New("notifications", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	_, change := b.RecordFailure()
	assert.True(t, change.Opened, "counters were cleared")
}

func TestBreaker_ConcurrentOutcomes(t *testing.T) {
	b := New("notifications", WithFailureThreshold(50))
	var wg sync.WaitGroup
	opened := make(chan struct{}, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(opened)

	assert.True(t, b.IsOpen())
	assert.Len(t, opened, 1, "exactly one caller observes the open transition")
}
