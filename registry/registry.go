// Package registry implements the type-dispatch table (C4): a map from
// (parent layer kind, next-protocol id) to a constructor of the next layer,
// with a package-level Default populated with the built-in mappings and
// Register for user overrides.
package registry

import (
	"sync"

	"github.com/netlayers/netlayers/layer"
)

// Constructor builds a layer from its own bytes (header through the end of
// the enclosing frame), recursively dissecting its inner payload via reg.
// It never sees bytes belonging to an outer layer.
type Constructor func(data []byte, reg *Registry) (layer.Layer, error)

// Key identifies a single (parent-kind, id) dispatch slot. ID is widened to
// uint32 to hold every next-protocol indicator this module dispatches on:
// EtherType, IP protocol number, DLT, and UDP port all fit.
type Key struct {
	Parent layer.Kind
	ID     uint32
}

// Registry is a mutable (parent-kind, id) → Constructor map: process-wide
// mutable state populated at initialization and read-only from normal
// dissection; callers who register late must do so happens-before any
// Dissect call.
type Registry struct {
	mu    sync.RWMutex
	table map[Key]Constructor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{table: make(map[Key]Constructor)}
}

// Register installs (or overrides) the constructor for (parent, id).
func (r *Registry) Register(parent layer.Kind, id uint32, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[Key{Parent: parent, ID: id}] = ctor
}

// Lookup returns the constructor registered for (parent, id), or nil, false
// on miss.
func (r *Registry) Lookup(parent layer.Kind, id uint32) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.table[Key{Parent: parent, ID: id}]
	return ctor, ok
}

// Clone returns a copy of r whose table may be mutated independently,
// useful for tests that register scoped overrides.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := New()
	for k, v := range r.table {
		out.table[k] = v
	}
	return out
}

// Default is the process-wide registry populated with every built-in
// mapping by package layers' init function. User code may call
// Default.Register to add or override mappings before the first Dissect
// call.
var Default = New()
