package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStartsUnset(t *testing.T) {
	e := NewEvent()
	assert.False(t, e.IsSet())
}

func TestFireIsIdempotent(t *testing.T) {
	e := NewEvent()
	assert.NotPanics(t, func() {
		e.Fire()
		e.Fire()
		e.Fire()
	})
	assert.True(t, e.IsSet())
}

func TestWaitBlocksUntilFire(t *testing.T) {
	e := NewEvent()
	done := make(chan struct{})
	go func() {
		require.NoError(t, e.Wait(context.Background()))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Fire")
	case <-time.After(20 * time.Millisecond):
	}

	e.Fire()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Fire")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := e.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEveryWaiterReleased(t *testing.T) {
	e := NewEvent()
	var wg sync.WaitGroup
	n := 20
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = e.Wait(context.Background())
		}()
	}
	time.Sleep(10 * time.Millisecond)
	e.Fire()

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("not all waiters released")
	}
}
