package app

import "sync"

// eventLocks serializes snapshot lifecycle transitions per event. The SQL
// conditional writes are the cross-process guard; this keeps a single
// process from even attempting interleaved transitions.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for eventID and returns the release function.
func (l *eventLocks) acquire(eventID string) func() {
	l.mu.Lock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
