package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsJobs(t *testing.T) {
	p := NewPool(context.Background(), 2, 10)
	p.Start()

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(5), n.Load())
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	p.Start()

	require.NoError(t, p.Submit(func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, p.Submit(func(context.Context) error { return nil }))
	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrQueueFull)

	close(block)
	require.NoError(t, p.Stop(context.Background()))
	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrStopped)
}

func TestPool_SurvivesPanicsAndErrors(t *testing.T) {
	p := NewPool(context.Background(), 1, 4)
	p.Start()

	var ran atomic.Bool
	require.NoError(t, p.Submit(func(context.Context) error { panic("boom") }))
	require.NoError(t, p.Submit(func(context.Context) error { return errors.New("failed") }))
	require.NoError(t, p.Submit(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, ran.Load())
}

func TestPool_StopTimeoutCancelsJobs(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	p.Start()

	cancelled := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
}
