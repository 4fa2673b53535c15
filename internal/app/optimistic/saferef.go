package optimistic

import "sync"

// SafeRef guards a value with a sync.RWMutex. Read takes the shared lock
// and Modify the exclusive one, so writers are serialized while readers
// proceed in parallel.
type SafeRef[T any] struct {
	mu  sync.RWMutex
	val T
}

// NewRef creates a SafeRef initialized with the given value.
func NewRef[T any](val T) *SafeRef[T] {
	return &SafeRef[T]{val: val}
}

// Modify applies fn under the write lock and returns what fn computed.
func Modify[T, R any](r *SafeRef[T], fn func(*T) R) R {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&r.val)
}

// Read applies fn under the read lock and returns what fn computed.
func Read[T, R any](r *SafeRef[T], fn func(T) R) R {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.val)
}
