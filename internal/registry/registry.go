// Package registry accumulates entities during an extraction run.
//
// Entities live in an arena (a dense slice) addressed through an index from
// opaque ID or normalized name to slot. A slot is first Declared, so later
// references resolve regardless of document order, then Populated once a pass
// has filled it in. Arenas are not safe for concurrent use; callers that fetch
// in parallel must serialize merges.
package registry

// State is the lifecycle state of an arena slot.
type State int

// Slot states.
const (
	Absent State = iota
	Declared
	Populated
)

func (s State) String() string {
	switch s {
	case Declared:
		return "declared"
	case Populated:
		return "populated"
	default:
		return "absent"
	}
}

// Arena stores entities of one type in insertion order.
type Arena[T any] struct {
	items  []*T
	keys   []string
	states []State
	index  map[string]int
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{index: make(map[string]int)}
}

// Declare returns the entity stored under key, creating it with factory when
// absent. The boolean reports whether a new slot was created.
func (a *Arena[T]) Declare(key string, factory func() *T) (*T, bool) {
	if i, ok := a.index[key]; ok {
		return a.items[i], false
	}
	item := factory()
	a.index[key] = len(a.items)
	a.items = append(a.items, item)
	a.keys = append(a.keys, key)
	a.states = append(a.states, Declared)
	return item, true
}

// GetOrCreate is Declare without the creation flag.
func (a *Arena[T]) GetOrCreate(key string, factory func() *T) *T {
	item, _ := a.Declare(key, factory)
	return item
}

// Get returns the entity stored under key.
func (a *Arena[T]) Get(key string) (*T, bool) {
	i, ok := a.index[key]
	if !ok {
		return nil, false
	}
	return a.items[i], true
}

// Has reports whether key has a slot.
func (a *Arena[T]) Has(key string) bool {
	_, ok := a.index[key]
	return ok
}

// State returns the state of key's slot.
func (a *Arena[T]) State(key string) State {
	i, ok := a.index[key]
	if !ok {
		return Absent
	}
	return a.states[i]
}

// MarkPopulated moves key's slot to Populated. It returns false when key has
// no slot.
func (a *Arena[T]) MarkPopulated(key string) bool {
	i, ok := a.index[key]
	if !ok {
		return false
	}
	a.states[i] = Populated
	return true
}

// Keys returns the slot keys in insertion order.
func (a *Arena[T]) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// All returns the entities in insertion order.
func (a *Arena[T]) All() []*T {
	out := make([]*T, len(a.items))
	copy(out, a.items)
	return out
}

// Len returns the number of slots.
func (a *Arena[T]) Len() int {
	return len(a.items)
}

// Drain hands every entity to the caller in insertion order and empties the arena.
func (a *Arena[T]) Drain() []*T {
	out := a.items
	a.items = nil
	a.keys = nil
	a.states = nil
	a.index = make(map[string]int)
	return out
}
