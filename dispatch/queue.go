package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// DefaultConsumeInterval is the drain cadence used when no interval is
// configured.
const DefaultConsumeInterval = 10 * time.Millisecond

// Task is a deferred unit of work executed on the owning goroutine.
type Task func()

// Queue collects tasks from any goroutine and executes them in batches on
// one owning goroutine. See the package documentation for the ordering and
// isolation guarantees.
type Queue struct {
	mu    sync.Mutex
	tasks []Task

	clk      clock.Clock
	interval time.Duration
}

// New creates a queue draining every interval. A nil clk uses the wall
// clock; a non-positive interval uses DefaultConsumeInterval.
func New(clk clock.Clock, interval time.Duration) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultConsumeInterval
	}
	return &Queue{clk: clk, interval: interval}
}

// Push enqueues a task. Safe to call from any goroutine; the lock is held
// only for the append.
func (q *Queue) Push(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Len reports the number of tasks waiting for the next drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// DrainOnce swaps out the pending batch and runs it in enqueue order on the
// calling goroutine, returning the batch size. Tasks pushed while the batch
// runs land in the next batch.
func (q *Queue) DrainOnce() int {
	q.mu.Lock()
	batch := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, task := range batch {
		q.runTask(task)
	}
	return len(batch)
}

// runTask executes one task, containing any panic so the rest of the batch
// and the drain loop keep going.
func (q *Queue) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "runTask",
				"panic":    r,
			}).Error("Deferred task failed")
		}
	}()
	task()
}

// Run drains the queue at the configured interval until ctx is cancelled.
// It blocks: the goroutine calling Run becomes the owning goroutine for
// every pushed task. The timer is re-armed after each batch completes, so a
// slow batch delays the next tick rather than overlapping it.
func (q *Queue) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"interval": q.interval,
	}).Debug("Dispatch loop started")

	timer := q.clk.Timer(q.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Run",
			}).Debug("Dispatch loop stopped")
			return
		case <-timer.C:
			q.DrainOnce()
			timer.Reset(q.interval)
		}
	}
}
