package engine

import (
	"fmt"
	"sync"
)

// MaxTerminals is the maximum number of simultaneously open terminals
// (spec.md §3, "The set of open terminals has size in [1, 4]").
const MaxTerminals = 4

// TerminalRegistry owns the set of open Terminals. Terminals exclusively
// own their output window and detector verdict (spec.md §5); the registry
// itself only guards the map of terminal ids, since all mutation of a given
// Terminal's fields happens from the engine's single task.
type TerminalRegistry struct {
	mu    sync.Mutex
	byID  map[TerminalID]*Terminal
	order []TerminalID // insertion order, for stable iteration
}

// NewTerminalRegistry creates an empty registry.
func NewTerminalRegistry() *TerminalRegistry {
	return &TerminalRegistry{byID: map[TerminalID]*Terminal{}}
}

// Open creates and registers a new Terminal. Returns ErrInvalidInput if
// MaxTerminals is already open or id is already in use.
func (r *TerminalRegistry) Open(id TerminalID, name, colorTag string) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) >= MaxTerminals {
		return nil, fmt.Errorf("open terminal: %w", ErrInvalidInput)
	}
	if _, exists := r.byID[id]; exists {
		return nil, fmt.Errorf("open terminal: %w", ErrInvalidInput)
	}
	t := &Terminal{ID: id, Name: name, ColorTag: colorTag, Output: NewOutputWindow()}
	r.byID[id] = t
	r.order = append(r.order, id)
	return t, nil
}

// Close removes a terminal from the registry.
func (r *TerminalRegistry) Close(id TerminalID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the Terminal for id, if open.
func (r *TerminalRegistry) Get(id TerminalID) (*Terminal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	return t, ok
}

// All returns the open terminals in insertion order. The returned pointers
// alias live Terminal state; callers outside the engine's single task must
// not mutate them.
func (r *TerminalRegistry) All() []*Terminal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Terminal, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of open terminals.
func (r *TerminalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
