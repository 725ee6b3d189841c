// Package classic implements the legacy eager runtime family: per-thread
// asynchronous executor queues and cached kernel instantiations.
//
// Importing the package registers it, so a blank import is enough:
//
//	import _ "github.com/eagerml/eager/runtimes/classic"
package classic

import (
	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/runtimes/internal/ctxcore"
)

// Name of the family, as used in runtime configuration strings.
const Name = "classic"

// DefaultNumCPUs is the number of host CPU devices a classic context
// exposes when the configuration does not say otherwise. Two, so that
// cross-device movement is exercisable without an accelerator.
const DefaultNumCPUs = 2

func init() {
	runtimes.Register(Name, New)
}

// Context is the classic-family execution context.
type Context struct {
	*ctxcore.State
}

// Compile-time check.
var _ runtimes.Context = (*Context)(nil)

// New builds a classic context. config is either empty or "cpus=<n>".
func New(config string) (runtimes.Context, error) {
	numCPUs, err := ctxcore.ParseDeviceCount(config, DefaultNumCPUs)
	if err != nil {
		return nil, err
	}
	state, err := ctxcore.NewState(ctxcore.Config{
		Kind:                   runtimes.KindClassic,
		Devices:                ctxcore.CPUDevices(numCPUs),
		AsyncExecutors:         true,
		CacheKernels:           true,
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
