package services

import "sync"

// KeyedLocker hands out one mutex per key so mutations of the same
// (owner, type) bucket or the same category are serialized, while unrelated
// keys proceed in parallel. Entries are dropped once no holder remains.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// NewKeyedLocker creates an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedLocker) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func bucketLockKey(userID string, budgetType string) string {
	return "bucket:" + userID + ":" + budgetType
}

func categoryLockKey(categoryID string) string {
	return "category:" + categoryID
}
