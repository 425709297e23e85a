package arrowscan

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is an opaque integer standing for a factory or a trampoline. It is
// what crosses the engine boundary in place of a pointer.
type Handle uint64

// ErrUnknownHandle is returned when a handle does not resolve, either because
// it was never issued or because its factory has been released.
var ErrUnknownHandle = errors.New("unknown arrow stream handle")

type handleTable struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]any
}

var handles = &handleTable{entries: make(map[Handle]any)}

func (t *handleTable) put(v any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.entries[t.next] = v
	return t.next
}

func (t *handleTable) get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.entries[h]
	return v, ok
}

func (t *handleTable) drop(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, h)
}

// resolve looks up h and checks it holds a T
func resolve[T any](h Handle) (T, error) {
	var zero T
	v, ok := handles.get(h)
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("handle %d holds %T, not %T", h, v, zero)
	}
	return t, nil
}
