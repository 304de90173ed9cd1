package booter

// Registry holds the entries of one discovery pass. An entry's index is its
// identity for the lifetime of the registry.
type Registry struct {
	entries []*BootEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends entries in discovery order.
func (r *Registry) Add(entries ...*BootEntry) {
	r.entries = append(r.entries, entries...)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entry returns the entry at index, or nil if it is out of range.
func (r *Registry) Entry(index int) *BootEntry {
	if r == nil || index < 0 || index >= len(r.entries) {
		return nil
	}
	return r.entries[index]
}

// Entries returns all entries in discovery order.
func (r *Registry) Entries() []*BootEntry {
	if r == nil {
		return nil
	}
	return r.entries
}

// Release drops the entries and their icons.
func (r *Registry) Release() {
	if r == nil {
		return
	}
	for _, e := range r.entries {
		e.Icon = nil
	}
	r.entries = nil
}
