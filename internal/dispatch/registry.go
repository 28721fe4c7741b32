// Package dispatch selects the active logic module through a versioned,
// owner-controlled registry. It never holds the data the modules act on.
package dispatch

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnknownModule = errors.New("unknown_module")
	ErrModuleExists  = errors.New("module_exists")
	ErrNoActive      = errors.New("no_implementation")
)

type Record struct {
	Module  string `json:"module" cbor:"1,keyasint"`
	Version uint64 `json:"version" cbor:"2,keyasint"`
}

type Registry[T any] struct {
	mu      sync.RWMutex
	owner   string
	catalog map[string]T
	history []Record
}

func NewRegistry[T any](owner string) *Registry[T] {
	return &Registry[T]{owner: owner, catalog: map[string]T{}}
}

func (r *Registry[T]) Owner() string { return r.owner }

// Register catalogues impl under ref. It does not activate it.
func (r *Registry[T]) Register(ref string, impl T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref == "" {
		return ErrUnknownModule
	}
	if _, ok := r.catalog[ref]; ok {
		return ErrModuleExists
	}
	r.catalog[ref] = impl
	return nil
}

// Upgrade activates ref and appends it to the history with the next
// version, even when ref was active before.
func (r *Registry[T]) Upgrade(caller, ref string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" || caller != r.owner {
		return Record{}, ErrUnauthorized
	}
	if _, ok := r.catalog[ref]; !ok {
		return Record{}, ErrUnknownModule
	}
	rec := Record{Module: ref, Version: r.version() + 1}
	r.history = append(r.history, rec)
	return rec, nil
}

// Current returns the active implementation and its record.
func (r *Registry[T]) Current() (T, Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if len(r.history) == 0 {
		return zero, Record{}, ErrNoActive
	}
	rec := r.history[len(r.history)-1]
	return r.catalog[rec.Module], rec, nil
}

func (r *Registry[T]) History() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Registry[T]) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.catalog))
	for k := range r.catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Restore replaces the history with a previously exported one. Every
// module it names must already be registered and versions must run 1..n.
func (r *Registry[T]) Restore(history []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range history {
		if _, ok := r.catalog[rec.Module]; !ok {
			return ErrUnknownModule
		}
		if rec.Version != uint64(i+1) {
			return ErrUnknownModule
		}
	}
	r.history = append([]Record(nil), history...)
	return nil
}

func (r *Registry[T]) version() uint64 {
	if len(r.history) == 0 {
		return 0
	}
	return r.history[len(r.history)-1].Version
}
