package ets

import (
	"reflect"
	"runtime"
	"sync"
)

// ---------------------------------------------------------------------------
// Resurrection side-tables: weak-keyed state shared across wrapper copies
// ---------------------------------------------------------------------------

// resurrectionTable associates side-state with a base value's identity
// without extending the base's lifetime: the entry is removed by a runtime
// cleanup when the base becomes unreachable. Only pointer-kinded bases are
// identity-bearing; values like numbers, strings, and structs-by-value get
// no entry, so every wrapper of such a value carries its own local state.
type resurrectionTable[V any] struct {
	mu      sync.Mutex
	entries map[uintptr]V
}

func newResurrectionTable[V any]() *resurrectionTable[V] {
	return &resurrectionTable[V]{entries: make(map[uintptr]V)}
}

// resurrectionKey derives the identity key for a base value. The second
// result is false for values with no stable identity.
func resurrectionKey(base any) (uintptr, bool) {
	if base == nil {
		return 0, false
	}
	rv := reflect.ValueOf(base)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, false
	}
	return rv.Pointer(), true
}

// lookup returns the entry for base, if any.
func (t *resurrectionTable[V]) lookup(base any) (V, bool) {
	var zero V
	key, ok := resurrectionKey(base)
	if !ok {
		return zero, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[key]
	if !ok {
		return zero, false
	}
	return v, true
}

// getOrCreate returns the entry for base, creating it with build on first
// use and arming a cleanup that drops the entry when base is collected.
// Returns ok=false when base has no stable identity.
func (t *resurrectionTable[V]) getOrCreate(base any, build func() V) (V, bool) {
	var zero V
	key, ok := resurrectionKey(base)
	if !ok {
		return zero, false
	}

	t.mu.Lock()
	if v, ok := t.entries[key]; ok {
		t.mu.Unlock()
		return v, true
	}
	v := build()
	t.entries[key] = v
	t.mu.Unlock()

	// The cleanup captures only the table and the key, never the base, so
	// it cannot keep the base reachable.
	cleanupTarget := (*byte)(reflect.ValueOf(base).UnsafePointer())
	runtime.AddCleanup(cleanupTarget, func(k uintptr) {
		t.remove(k)
	}, key)
	return v, true
}

// put installs an entry for base directly, arming the same cleanup.
func (t *resurrectionTable[V]) put(base any, v V) bool {
	key, ok := resurrectionKey(base)
	if !ok {
		return false
	}
	t.mu.Lock()
	_, existed := t.entries[key]
	t.entries[key] = v
	t.mu.Unlock()

	if !existed {
		cleanupTarget := (*byte)(reflect.ValueOf(base).UnsafePointer())
		runtime.AddCleanup(cleanupTarget, func(k uintptr) {
			t.remove(k)
		}, key)
	}
	return true
}

func (t *resurrectionTable[V]) remove(key uintptr) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// count reports the number of live entries, for tests.
func (t *resurrectionTable[V]) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
