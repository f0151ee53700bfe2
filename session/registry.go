// Package session keeps the tracked barcodes of the current detection cycle.
package session

import (
	"sync"

	"github.com/LdDl/scanbridge/codec"
)

// Registry holds exactly one cycle worth of tracked barcodes.
// Identifiers are only trusted together with the cycle they were reported in.
type Registry struct {
	mu      sync.RWMutex
	cycleID string
	started bool
	objects map[int]codec.TrackedBarcode
	order   []int
}

func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[int]codec.TrackedBarcode),
	}
}

// BeginCycle replaces the tracked set unconditionally
func (r *Registry) BeginCycle(cycleID string, objects []codec.TrackedBarcode) {
	next := make(map[int]codec.TrackedBarcode, len(objects))
	order := make([]int, 0, len(objects))
	for _, object := range objects {
		if _, dup := next[object.Identifier]; !dup {
			order = append(order, object.Identifier)
		}
		next[object.Identifier] = object
	}
	r.mu.Lock()
	r.cycleID = cycleID
	r.started = true
	r.objects = next
	r.order = order
	r.mu.Unlock()
}

// Lookup returns the tracked barcode objectID of the current cycle.
// An empty cycleID skips the cycle check; a mismatching one means the answer
// is stale and is reported as not found.
func (r *Registry) Lookup(objectID int, cycleID string) (codec.TrackedBarcode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.objects) == 0 {
		return codec.TrackedBarcode{}, false
	}
	if cycleID != "" && cycleID != r.cycleID {
		return codec.TrackedBarcode{}, false
	}
	object, ok := r.objects[objectID]
	return object, ok
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.cycleID = ""
	r.started = false
	r.objects = make(map[int]codec.TrackedBarcode)
	r.order = nil
	r.mu.Unlock()
}

// Cycle returns the current cycle id; false when no cycle has begun since the last Clear
func (r *Registry) Cycle() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cycleID, r.started
}

// Objects returns the current tracked set in the order it was reported
func (r *Registry) Objects() []codec.TrackedBarcode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]codec.TrackedBarcode, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.objects[id])
	}
	return result
}
