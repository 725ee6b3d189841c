package runtimes

import (
	"slices"
	"sync"

	"github.com/eagerml/eager/types/dtypes"
)

// ArgDef is one input or output of a function signature.
type ArgDef struct {
	Name  string
	DType dtypes.DType
}

// FunctionDef is a named, reusable operation graph that can later be invoked
// as a single callable op. The exact body encoding is owned by whoever
// produced it; the registry only requires the unique Name.
//
// A FunctionDef is immutable once registered.
type FunctionDef struct {
	Name    string
	Inputs  []ArgDef
	Outputs []ArgDef

	// Body is the serialized definition of the function graph.
	Body []byte
}

// Clone returns a deep copy of the definition.
func (f *FunctionDef) Clone() *FunctionDef {
	return &FunctionDef{
		Name:    f.Name,
		Inputs:  slices.Clone(f.Inputs),
		Outputs: slices.Clone(f.Outputs),
		Body:    slices.Clone(f.Body),
	}
}

// FunctionRegistry is a name-keyed store of function definitions shared by
// all threads of a context. Add is atomic; concurrent Add/Find/List calls
// observe consistent snapshots and never a partially-inserted entry.
type FunctionRegistry struct {
	mu  sync.RWMutex
	fns map[string]*FunctionDef
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{fns: make(map[string]*FunctionDef)}
}

// Add registers fdef under its name. It fails with ErrAlreadyExists if the
// name is taken, leaving the registry unchanged. The registry stores its own
// copy, so later mutations of fdef by the caller are not observed.
func (r *FunctionRegistry) Add(fdef *FunctionDef) error {
	if fdef == nil || fdef.Name == "" {
		return InvalidArgumentf("function definition must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.fns[fdef.Name]; found {
		return AlreadyExistsf("function %q is already registered", fdef.Name)
	}
	r.fns[fdef.Name] = fdef.Clone()
	return nil
}

// Find returns the definition registered under name. It never fails: a
// missing name returns found == false. The returned definition is owned by
// the registry and must not be mutated.
func (r *FunctionRegistry) Find(name string) (fdef *FunctionDef, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fdef, found = r.fns[name]
	return
}

// Len returns the number of registered functions.
func (r *FunctionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}

// Names returns the registered function names, in no particular order.
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	return names
}
