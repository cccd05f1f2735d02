package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpiryService struct {
	mu     sync.Mutex
	calls  []time.Time
	result int
	err    error
	called chan struct{}
}

func newFakeExpiryService() *fakeExpiryService {
	return &fakeExpiryService{called: make(chan struct{}, 16)}
}

func (f *fakeExpiryService) ExpireDuePolicies(_ context.Context, at time.Time) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, at)
	f.mu.Unlock()
	select {
	case f.called <- struct{}{}:
	default:
	}
	return f.result, f.err
}

func (f *fakeExpiryService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestExpirer_Sweep(t *testing.T) {
	fixed := time.Date(2027, 4, 1, 9, 0, 0, 0, time.FixedZone("CST", -6*3600))

	t.Run("passes the clock instant in UTC", func(t *testing.T) {
		svc := newFakeExpiryService()
		svc.result = 2
		e := NewExpirer(svc, time.Minute, WithClock(func() time.Time { return fixed }))

		assert.Equal(t, 2, e.Sweep(context.Background()))
		require.Len(t, svc.calls, 1)
		assert.True(t, svc.calls[0].Equal(fixed))
		assert.Equal(t, time.UTC, svc.calls[0].Location())
	})

	t.Run("partial failure still reports expired count", func(t *testing.T) {
		svc := newFakeExpiryService()
		svc.result = 1
		svc.err = errors.New("expire policy: lock timeout")
		e := NewExpirer(svc, time.Minute)

		assert.Equal(t, 1, e.Sweep(context.Background()))
	})
}

func TestExpirer_Run(t *testing.T) {
	t.Run("sweeps immediately and on each tick until cancelled", func(t *testing.T) {
		svc := newFakeExpiryService()
		e := NewExpirer(svc, 10*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		for range 2 {
			select {
			case <-svc.called:
			case <-time.After(time.Second):
				t.Fatal("expirer did not sweep")
			}
		}
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("expirer did not stop")
		}
		assert.GreaterOrEqual(t, svc.callCount(), 2)
	})

	t.Run("rejects a non-positive interval", func(t *testing.T) {
		e := NewExpirer(newFakeExpiryService(), 0)
		assert.Error(t, e.Run(context.Background()))
	})
}
