package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid device-state echoes. Each key holds at
// most one pending action; a newer event for the same key replaces the
// old timer outright, so only the last event inside the quiet period
// fires.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: map[string]*time.Timer{},
	}
}

// Trigger (re)starts the timer for key. fn runs once the key has been
// quiet for the full delay. After Stop, triggers are dropped.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		fn()
	})
}

// Pending reports whether key has an undelivered action. Test hook.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Stop cancels every pending timer and waits for in-flight actions to
// finish. No action fires after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.closed = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
