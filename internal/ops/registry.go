package ops

import (
	"sort"
	"sync"
)

// Registry manages registered operations. The registry is populated once
// at startup and treated as immutable afterwards; the mutex exists so
// tests can register fakes safely.
type Registry struct {
	operations map[string]Operation
	mu         sync.RWMutex
}

// NewRegistry creates a new operation registry.
func NewRegistry() *Registry {
	return &Registry{
		operations: make(map[string]Operation),
	}
}

// Register adds an operation to the registry.
// Returns an error if an operation with the same name is already registered.
func (r *Registry) Register(op Operation) error {
	if op == nil {
		return NewRegistrationError("", "operation cannot be nil")
	}

	name := op.Name()
	if name == "" {
		return NewRegistrationError("", "operation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operations[name]; exists {
		return NewRegistrationError(name, "operation already registered")
	}

	r.operations[name] = op
	return nil
}

// MustRegister adds an operation to the registry, panicking on error.
// Intended for startup wiring where a duplicate is a programming error.
func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Get retrieves an operation by name.
// Returns the operation and true if found, or nil and false if not found.
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, exists := r.operations[name]
	return op, exists
}

// Unregister removes an operation from the registry.
// Returns true if the operation was removed, false if it was not found.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operations[name]; !exists {
		return false
	}
	delete(r.operations, name)
	return true
}

// List returns a sorted list of all registered operation names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the catalog entries for all registered operations,
// ordered by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		op := r.operations[name]
		defs = append(defs, Definition{
			Name:        op.Name(),
			Description: op.Description(),
			Schema:      op.Schema(),
		})
	}
	return defs
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.operations)
}
