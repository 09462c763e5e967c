// Package catalog holds the rulebooks currently published for classification
// and keeps them fresh.
//
// Readers never lock: the registry is an immutable organization → rulebook
// map behind an atomic pointer, and every change publishes a new map. A
// reader therefore sees either the snapshot before a reload or the one after,
// never a mix.
package catalog

import (
	"sort"
	"sync/atomic"

	"rulebook-classifier/internal/rulebook"
)

type snapshot map[string]*rulebook.Rulebook

type Registry struct {
	current atomic.Pointer[snapshot]
}

func NewRegistry() *Registry {
	r := &Registry{}
	empty := snapshot{}
	r.current.Store(&empty)
	return r
}

func (r *Registry) load() snapshot {
	return *r.current.Load()
}

// Get returns the published rulebook for organization.
func (r *Registry) Get(organization string) (*rulebook.Rulebook, bool) {
	rb, ok := r.load()[organization]
	return rb, ok
}

// Organizations lists published organizations, sorted.
func (r *Registry) Organizations() []string {
	snap := r.load()
	orgs := make([]string, 0, len(snap))
	for org := range snap {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)
	return orgs
}

func (r *Registry) Len() int {
	return len(r.load())
}

// Publish makes rb the current rulebook for its organization and returns the
// one it replaced, if any.
func (r *Registry) Publish(rb *rulebook.Rulebook) *rulebook.Rulebook {
	var previous *rulebook.Rulebook
	r.update(func(next snapshot) {
		previous = next[rb.Organization()]
		next[rb.Organization()] = rb
	})
	return previous
}

// Remove withdraws an organization's rulebook. It reports whether one was published.
func (r *Registry) Remove(organization string) bool {
	var removed bool
	r.update(func(next snapshot) {
		_, removed = next[organization]
		delete(next, organization)
	})
	return removed
}

// update applies mutate to a copy of the current snapshot and swaps it in,
// retrying if another writer got there first.
func (r *Registry) update(mutate func(snapshot)) {
	for {
		old := r.current.Load()
		next := make(snapshot, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		mutate(next)
		if r.current.CompareAndSwap(old, &next) {
			return
		}
	}
}
