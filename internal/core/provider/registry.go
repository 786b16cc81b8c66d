package provider

import "sort"

// Registry maps canonical categories to the adapters that serve them. The
// mapping is data, so the orchestrator never branches on provider identity.
type Registry struct {
	adapters   map[string]Adapter
	categories map[string][]string
	order      []string
}

// NewRegistry builds a registry from a category→provider-id table. An empty
// table routes every category to every registered adapter.
func NewRegistry(categories map[string][]string) *Registry {
	return &Registry{
		adapters:   make(map[string]Adapter),
		categories: categories,
	}
}

// Register adds an adapter. Registration order is preserved for
// deterministic selection.
func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
}

// Select returns the adapters applicable to a canonical category, in a
// deterministic order.
func (r *Registry) Select(category string) []Adapter {
	ids, ok := r.categories[category]
	if !ok || len(ids) == 0 {
		return r.all()
	}

	selected := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		if a, registered := r.adapters[id]; registered {
			selected = append(selected, a)
		}
	}
	return selected
}

// Get returns a registered adapter by id.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

func (r *Registry) all() []Adapter {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	out := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.adapters[id])
	}
	return out
}
