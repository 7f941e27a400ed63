// Package schedule provides cancellable delayed tasks that fire on an
// owner's event loop instead of on a timer goroutine.
package schedule

import (
	"sync"
	"time"
)

// Dispatcher hands fn to the goroutine that owns the task's state.
// It must not block for long; the controller's loop posts fn into its
// event channel.
type Dispatcher func(fn func())

// Task runs fn once, delay after the most recent Schedule call, unless it is
// cancelled first. Rescheduling restarts the delay (debounce).
type Task struct {
	delay    time.Duration
	dispatch Dispatcher
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

// NewTask creates an idle task.
func NewTask(delay time.Duration, dispatch Dispatcher, fn func()) *Task {
	return &Task{delay: delay, dispatch: dispatch, fn: fn}
}

// Delay returns the configured delay.
func (t *Task) Delay() time.Duration {
	return t.delay
}

// Schedule arms the task, replacing any pending firing.
func (t *Task) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.armed = true
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, func() {
		t.dispatch(func() { t.fire(gen) })
	})
}

// Cancel disarms the task. It reports whether a firing was pending.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasArmed := t.armed
	t.armed = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return wasArmed
}

// Pending reports whether the task is armed.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// fire runs on the owner's loop. A firing that was superseded or cancelled
// after the timer expired but before the loop got to it is dropped.
func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	if !t.armed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.timer = nil
	t.mu.Unlock()

	t.fn()
}
