package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllSubmittedTasks(t *testing.T) {
	p := New(context.Background(), 4, 16)
	defer p.Close()

	var count atomic.Int64
	const n = 50
	for i := 0; i < n; i++ {
		ok := p.Submit(func(ctx context.Context) {
			count.Add(1)
		})
		require.True(t, ok)
	}

	p.Close()
	assert.Equal(t, int64(n), count.Load())
}

func TestPool_RecoversFromPanickingTask(t *testing.T) {
	p := New(context.Background(), 2, 4)

	var ran atomic.Bool
	p.Submit(func(ctx context.Context) {
		panic("boom")
	})
	ok := p.Submit(func(ctx context.Context) {
		ran.Store(true)
	})
	require.True(t, ok)

	p.Close()
	assert.True(t, ran.Load())
}

func TestPool_SubmitFailsAfterCancel(t *testing.T) {
	p := New(context.Background(), 1, 1)
	p.Cancel()

	ok := p.Submit(func(ctx context.Context) {})
	assert.False(t, ok)
}

func TestPool_MinimumSizeOne(t *testing.T) {
	p := New(context.Background(), 0, 1)
	defer p.Close()

	done := make(chan struct{})
	ok := p.Submit(func(ctx context.Context) { close(done) })
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
