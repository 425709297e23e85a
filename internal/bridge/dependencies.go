package bridge

import (
	"log"
	"strings"
	"sync"
)

// StreamNamespace is the registry namespace stream factories are kept under
const StreamNamespace = "arrow_streams"

// Dependency is something the engine may still call into after the call
// that created it has returned
type Dependency interface {
	Release()
}

type dependencyEntry struct {
	view string
	dep  Dependency
}

// Dependencies keeps objects alive on behalf of a connection, grouped by
// namespace and keyed by the view that uses them. Everything is released
// when the connection closes.
type Dependencies struct {
	mu      sync.Mutex
	entries map[string][]dependencyEntry
}

// NewDependencies makes an empty registry
func NewDependencies() *Dependencies {
	return &Dependencies{entries: make(map[string][]dependencyEntry)}
}

// Put stores dep for view under namespace. An entry already held for the
// same view is removed and released. View names compare case-insensitively,
// the way the engine resolves identifiers.
func (d *Dependencies) Put(namespace, view string, dep Dependency) {
	d.mu.Lock()
	var prev Dependency
	list := d.entries[namespace]
	for i := range list {
		if strings.EqualFold(list[i].view, view) {
			prev = list[i].dep
			list[i].view, list[i].dep = view, dep
			break
		}
	}
	if prev == nil {
		d.entries[namespace] = append(list, dependencyEntry{view: view, dep: dep})
	}
	d.mu.Unlock()

	if prev != nil {
		log.Printf("[DEBUG] view %q replaced, dropping previous %s entry", view, namespace)
		prev.Release()
	}
}

// Views lists the views holding entries in namespace, in registration order
func (d *Dependencies) Views(namespace string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	views := make([]string, 0, len(d.entries[namespace]))
	for _, e := range d.entries[namespace] {
		views = append(views, e.view)
	}
	return views
}

// Len returns the number of entries across all namespaces
func (d *Dependencies) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, list := range d.entries {
		n += len(list)
	}
	return n
}

// Release drops every entry, in registration order within each namespace.
func (d *Dependencies) Release() {
	d.mu.Lock()
	entries := d.entries
	d.entries = make(map[string][]dependencyEntry)
	d.mu.Unlock()

	for ns, list := range entries {
		for _, e := range list {
			log.Printf("[DEBUG] releasing %s entry for view %q", ns, e.view)
			e.dep.Release()
		}
	}
}
