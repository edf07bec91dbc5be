// Package keylock serializes work per key while letting distinct keys proceed
// in parallel.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyLock is a set of mutexes addressed by string keys. Entries are released
// when no goroutine holds or waits for them. The zero value is ready to use.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// Lock blocks until key is held or ctx is done. The returned function
// releases the key and must be called exactly once.
func (k *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}

	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e, false)

		return nil, ctx.Err() //nolint:wrapcheck
	}

	var once sync.Once

	return func() {
		once.Do(func() { k.release(key, e, true) })
	}, nil
}

func (k *KeyLock) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.locks)
}
