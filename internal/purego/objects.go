package purego

import "sync"

// objectTable hands out integer ids for Go values whose lifetime is owned by
// the engine. The engine only ever sees the id, stored where the C API
// expects a void pointer, and gives it back to the callbacks.
type objectTable struct {
	mu      sync.Mutex
	next    uintptr
	entries map[uintptr]any
}

var objects = &objectTable{entries: make(map[uintptr]any)}

func (t *objectTable) put(v any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.entries[t.next] = v
	return t.next
}

func (t *objectTable) get(id uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[id]
	return v, ok
}

func (t *objectTable) take(id uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[id]
	delete(t.entries, id)
	return v, ok
}

func (t *objectTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
