package recitation

import (
	"sync"
	"time"
)

// Debouncer is a cancelable, one-shot delayed task. Scheduling again replaces
// the pending run.
//
// The callback receives a token. The owner must call [Debouncer.Fire] with it
// under the same lock that guards Schedule and Cancel; a false result means
// the run was superseded or cancelled after the timer had already fired, and
// the callback must do nothing.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	token uint64
	armed bool
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels any pending run and arranges for fn to be called after the
// quiet period.
func (d *Debouncer) Schedule(fn func(token uint64)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.token++
	d.armed = true
	token := d.token
	d.timer = time.AfterFunc(d.delay, func() { fn(token) })
}

// Cancel stops the pending run, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.token++
	d.armed = false
}

// Pending reports whether a run is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Fire consumes token. It returns true exactly once for the latest scheduled
// run and false for any superseded or cancelled one.
func (d *Debouncer) Fire(token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed || token != d.token {
		return false
	}
	d.armed = false
	d.timer = nil
	return true
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
