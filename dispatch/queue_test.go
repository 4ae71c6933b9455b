package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainOnceRunsInEnqueueOrder(t *testing.T) {
	q := New(nil, 0)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		q.Push(func() { order = append(order, i) })
	}

	ran := q.DrainOnce()
	assert.Equal(t, 10, ran)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueue_CrossGoroutineOrdering(t *testing.T) {
	q := New(nil, 0)

	var order []string
	pushed := make(chan struct{})

	// Producer 1 enqueues A strictly before producer 2 enqueues B; both
	// land before the drain, so A's effect must be observable first.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.Push(func() { order = append(order, "A") })
		close(pushed)
	}()
	go func() {
		defer wg.Done()
		<-pushed
		q.Push(func() { order = append(order, "B") })
	}()
	wg.Wait()

	q.DrainOnce()
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestQueue_TaskPushedDuringDrainLandsInNextBatch(t *testing.T) {
	q := New(nil, 0)

	var secondRan bool
	q.Push(func() {
		q.Push(func() { secondRan = true })
	})

	ran := q.DrainOnce()
	assert.Equal(t, 1, ran, "nested push belongs to the next batch")
	assert.False(t, secondRan)
	assert.Equal(t, 1, q.Len())

	ran = q.DrainOnce()
	assert.Equal(t, 1, ran)
	assert.True(t, secondRan)
}

func TestQueue_PanicDoesNotStopBatch(t *testing.T) {
	q := New(nil, 0)

	var secondRan bool
	q.Push(func() { panic("task blew up") })
	q.Push(func() { secondRan = true })

	ran := q.DrainOnce()
	assert.Equal(t, 2, ran)
	assert.True(t, secondRan, "task after the panicking one must still run")

	// The queue stays usable after a failed task.
	var thirdRan bool
	q.Push(func() { thirdRan = true })
	q.DrainOnce()
	assert.True(t, thirdRan)
}

func TestQueue_ExactlyOnceExecution(t *testing.T) {
	q := New(nil, 0)

	counts := make([]int, 5)
	for i := range counts {
		i := i
		q.Push(func() { counts[i]++ })
	}

	q.DrainOnce()
	q.DrainOnce()
	for i, n := range counts {
		assert.Equal(t, 1, n, "task %d must run exactly once", i)
	}
}

func TestQueue_RunDrainsOnTicks(t *testing.T) {
	mock := clock.NewMock()
	q := New(mock, 10*time.Millisecond)

	var mu sync.Mutex
	var ran []string
	record := func(name string) Task {
		return func() {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
		}
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(ran))
		copy(out, ran)
		return out
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()

	// Step the mock clock until the loop has armed its timer and drained.
	q.Push(record("first"))
	require.Eventually(t, func() bool {
		mock.Add(10 * time.Millisecond)
		return len(snapshot()) == 1
	}, time.Second, time.Millisecond)

	q.Push(record("second"))
	require.Eventually(t, func() bool {
		mock.Add(10 * time.Millisecond)
		return len(snapshot()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, snapshot())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch loop did not stop on cancellation")
	}
}

func TestQueue_RunSurvivesPanickingTask(t *testing.T) {
	mock := clock.NewMock()
	q := New(mock, 10*time.Millisecond)

	var mu sync.Mutex
	var survived bool

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Push(func() { panic("boom") })
	q.Push(func() {
		mu.Lock()
		survived = true
		mu.Unlock()
	})
	require.Eventually(t, func() bool {
		mock.Add(10 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return survived
	}, time.Second, time.Millisecond)

	// The next tick still fires normally.
	var nextTick bool
	q.Push(func() {
		mu.Lock()
		nextTick = true
		mu.Unlock()
	})
	require.Eventually(t, func() bool {
		mock.Add(10 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return nextTick
	}, time.Second, time.Millisecond)
}
