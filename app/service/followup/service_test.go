package followup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesTasksInOrder(t *testing.T) {
	svc := NewService()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	svc.Enqueue("first", func(_ context.Context) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	svc.Enqueue("second", func(_ context.Context) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := NewService()

	// No worker running: fill the buffer, then one more must not block.
	for i := 0; i < bufferSize; i++ {
		svc.Enqueue("fill", func(_ context.Context) {})
	}

	doneCh := make(chan struct{})
	go func() {
		svc.Enqueue("overflow", func(_ context.Context) {})
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	assert.Len(t, svc.queue, bufferSize)
}

func TestRunRecoversFromPanickingTask(t *testing.T) {
	svc := NewService()

	done := make(chan struct{})

	svc.Enqueue("boom", func(_ context.Context) {
		panic("task exploded")
	})
	svc.Enqueue("after", func(_ context.Context) {
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestShutdownStopsWorkerAndDropsLateTasks(t *testing.T) {
	svc := NewService()

	stopped := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(stopped)
	}()

	require.NoError(t, svc.Shutdown())

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after Shutdown")
	}

	// Enqueue after shutdown must not panic the caller.
	assert.NotPanics(t, func() {
		svc.Enqueue("late", func(_ context.Context) {})
	})
}
