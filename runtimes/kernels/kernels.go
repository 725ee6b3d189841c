// Package kernels is the name-keyed registry of eager kernels: the functions
// an operation node runs when its turn comes on the executor queue.
//
// Builtin kernels for a handful of common ops are registered at package
// initialization; runtime embedders register their own with Register.
package kernels

import (
	"github.com/gomlx/exceptions"

	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/types/xsync"
)

// Call carries everything a kernel needs: the resolved inputs (already on
// the right device), the attributes set on the operation, and the target
// device name.
type Call struct {
	OpName string
	Device string
	Attrs  map[string]any

	// Inputs are owned by their handles; kernels must not mutate or
	// release them.
	Inputs []*runtimes.Buffer
}

// Attr returns an attribute of the call, if set.
func (c *Call) Attr(name string) (value any, found bool) {
	value, found = c.Attrs[name]
	return
}

// Kernel executes one operation over materialized buffers and returns the
// output buffers, which the runtime wraps into the operation's output
// handles.
type Kernel func(call *Call) ([]*runtimes.Buffer, error)

var registry xsync.SyncMap[string, Kernel]

// Register a kernel for the given op name. Registering the same op twice is
// a programming error and panics.
func Register(opName string, kernel Kernel) {
	if _, loaded := registry.LoadOrStore(opName, kernel); loaded {
		exceptions.Panicf("kernel for op %q registered twice", opName)
	}
}

// Lookup returns the kernel registered for opName, if any.
func Lookup(opName string) (Kernel, bool) {
	return registry.Load(opName)
}
