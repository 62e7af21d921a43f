// Package sync provides named locks used to keep store sessions from
// overlapping.
package sync

import (
	"sync"
)

// KeyLock manages named mutexes for granular locking.
// Entries are never removed; keys are store codes, a small fixed set.
type KeyLock struct {
	locks sync.Map
}

// NewKeyLock creates a new KeyLock instance
func NewKeyLock() *KeyLock {
	return &KeyLock{}
}

func (l *KeyLock) mutex(key string) *sync.Mutex {
	val, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	return val.(*sync.Mutex)
}

// Lock acquires the lock for key
func (l *KeyLock) Lock(key string) {
	l.mutex(key).Lock()
}

// Unlock releases the lock for key
func (l *KeyLock) Unlock(key string) {
	val, ok := l.locks.Load(key)
	if !ok {
		return
	}
	val.(*sync.Mutex).Unlock()
}

// TryLock attempts to acquire the lock, returning true if successful
func (l *KeyLock) TryLock(key string) bool {
	return l.mutex(key).TryLock()
}

// TryRun runs fn while holding key's lock. It returns false without running
// fn when the lock is already held.
func (l *KeyLock) TryRun(key string, fn func()) bool {
	if !l.TryLock(key) {
		return false
	}
	defer l.Unlock(key)
	fn()
	return true
}
