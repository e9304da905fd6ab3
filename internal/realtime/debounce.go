package realtime

import (
	"sync"
	"time"
)

// Debouncer runs fn once the triggers stop for delay.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.cancelLocked()

	d.running.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.running.Done()
		d.fn()
	})
}

// Cancel drops a pending run. A run already in progress is not interrupted.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending run, ignores further triggers and waits for a run in progress.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}
	d.timer = nil
}
