package chat

import "sync"

// turnLocks serializes turns per conversation so two concurrent requests
// against the same conversation cannot interleave their history reads and
// message appends. Turns on distinct conversations proceed in parallel.
type turnLocks struct {
	mu    sync.Mutex
	locks map[int32]*turnLock
}

type turnLock struct {
	mu   sync.Mutex
	refs int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{
		locks: make(map[int32]*turnLock),
	}
}

// lock acquires the lock for the given conversation and returns the matching
// unlock function. The per-conversation entry is reference counted and removed
// once the last holder releases it, so the map does not grow with every
// conversation ever seen.
func (t *turnLocks) lock(conversationID int32) func() {
	t.mu.Lock()
	l, ok := t.locks[conversationID]
	if !ok {
		l = &turnLock{}
		t.locks[conversationID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, conversationID)
		}
		t.mu.Unlock()
	}
}
