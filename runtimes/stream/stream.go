// Package stream implements the newer eager runtime family. It dispatches
// nodes inline on submission: the executor queue is a degenerate one-deep
// stream, which trades pipelining for simpler failure semantics and no
// kernel-instantiation cache to invalidate.
//
// Importing the package registers it:
//
//	import _ "github.com/eagerml/eager/runtimes/stream"
package stream

import (
	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/runtimes/internal/ctxcore"
)

// Name of the family, as used in runtime configuration strings.
const Name = "stream"

// DefaultNumCPUs matches the classic family so either one can back the same
// caller code.
const DefaultNumCPUs = 2

func init() {
	runtimes.Register(Name, New)
}

// Context is the stream-family execution context.
type Context struct {
	*ctxcore.State
}

var _ runtimes.Context = (*Context)(nil)

// New builds a stream context. config is either empty or "cpus=<n>".
func New(config string) (runtimes.Context, error) {
	numCPUs, err := ctxcore.ParseDeviceCount(config, DefaultNumCPUs)
	if err != nil {
		return nil, err
	}
	state, err := ctxcore.NewState(ctxcore.Config{
		Kind:                   runtimes.KindStream,
		Devices:                ctxcore.CPUDevices(numCPUs),
		AsyncExecutors:         false,
		CacheKernels:           false,
		DefaultPlacementPolicy: runtimes.PlacementSilent,
	})
	if err != nil {
		return nil, err
	}
	return &Context{State: state}, nil
}

// CreateOperation returns a fresh operation builder for the given thread of
// control.
func (c *Context) CreateOperation(tid runtimes.ThreadID) runtimes.Operation {
	return c.NewOperation(tid)
}
