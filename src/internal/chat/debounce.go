package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a debounced call that a newer call for the
// same key replaced before its window elapsed.
var ErrSuperseded = errors.New("superseded by a newer request")

// Debouncer runs only the last of a burst of calls per key.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	next uint64
	seq  map[string]uint64
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seq:    make(map[string]uint64),
	}
}

// Do waits out the window and then runs fn, unless another Do for key
// arrived meanwhile.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	d.next++
	mine := d.next
	d.seq[key] = mine
	d.mu.Unlock()

	timer := time.NewTimer(d.window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.release(key, mine)
		return ctx.Err()
	case <-timer.C:
	}

	if !d.release(key, mine) {
		return ErrSuperseded
	}
	return fn(ctx)
}

// release forgets key if call is still its latest and reports whether it was.
func (d *Debouncer) release(key string, call uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq[key] != call {
		return false
	}
	delete(d.seq, key)
	return true
}
