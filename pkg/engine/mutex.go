package engine

import "sync"

// keyedMutex serializes message handling per (tenant, phone number). Two
// near-simultaneous messages from the same sender are processed one after
// the other instead of racing on the conversation's state write.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*senderLock)}
}

// Lock acquires the lock for key and returns the matching unlock func.
// Lock entries are dropped once the last holder releases them, so the map
// does not grow with sender cardinality.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &senderLock{}
		k.locks[key] = lock
	}

	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		k.mu.Lock()
		lock.refs--

		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
