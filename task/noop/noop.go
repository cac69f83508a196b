package noop

import (
	"context"
	"sync"
)

// Tracker remembers performed task IDs in memory.
type Tracker struct {
	mx        sync.Mutex
	performed []string
}

// NewTracker creates a new in-memory Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// MarkPerformed records id.
func (t *Tracker) MarkPerformed(_ context.Context, id string) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.performed = append(t.performed, id)
	return nil
}

// Performed returns the recorded IDs in call order.
func (t *Tracker) Performed() []string {
	t.mx.Lock()
	defer t.mx.Unlock()
	return append([]string(nil), t.performed...)
}

// Close is a no-op.
func (t *Tracker) Close() error {
	return nil
}
