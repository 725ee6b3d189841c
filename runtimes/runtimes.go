// Package runtimes defines the execution-context abstraction of the eager
// tensor runtime: the Context that creates tensors and handles, dispatches
// operations for immediate execution, and governs cross-device data movement
// policy.
//
// Operations appear synchronous to callers while actually executing
// asynchronously on a per-thread Executor queue: submitting an operation
// returns a Handle immediately, whose backing data becomes valid only when
// the node completes. The only ways to observe completion are consuming the
// handle (which blocks internally if the data is needed) or AsyncWait.
//
// Two runtime families implement the same Context contract -- see the
// classic and stream sub-packages -- selected at construction through the
// constructor registry (Register, New, NewWithConfig). Swapping families
// requires no caller code change.
package runtimes

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/x448/float16"

	"github.com/eagerml/eager/types/dtypes"
)

// Kind tags the runtime family implementing a Context. Capability checks are
// a plain enum comparison, no runtime type inspection needed.
type Kind int

const (
	KindInvalid Kind = iota

	// KindClassic is the legacy family: per-thread asynchronous executor
	// queues and cached kernel instantiations.
	KindClassic

	// KindStream is the newer family: inline synchronous dispatch.
	KindStream
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindClassic:
		return "classic"
	case KindStream:
		return "stream"
	}
	return "invalid"
}

// ThreadID identifies one thread of control. Per-thread state -- the active
// Executor and the device placement policy -- is keyed by it explicitly,
// rather than by implicit thread-local storage, which keeps the behavior
// testable without spinning real threads. A caller running N concurrent
// workers allocates N ThreadIDs and observes N independent instances.
type ThreadID uint64

var threadIDGen atomic.Uint64

// NewThreadID allocates a fresh thread-of-control identity.
func NewThreadID() ThreadID {
	return ThreadID(threadIDGen.Add(1))
}

// Operation is a pending unit of work being assembled by a caller: an op
// name, input handles and attributes. It is owned by the caller until
// Execute submits it to the context that created it.
type Operation interface {
	// Reset re-initializes the operation to the given op name and device
	// override (empty means the context decides), dropping inputs and
	// attributes. An Operation may be reused across executions.
	Reset(opName, deviceName string) error

	// OpName returns the operation type name.
	OpName() string

	// SetDeviceName overrides the device the operation executes on.
	SetDeviceName(deviceName string) error

	// DeviceName returns the device override, or "" if none.
	DeviceName() string

	// AddInput appends an input handle.
	AddInput(h *Handle) error

	// AddInputs appends several input handles.
	AddInputs(hs ...*Handle) error

	// NumInputs returns the number of inputs added so far.
	NumInputs() int

	// SetAttr sets a named attribute consumed by the kernel.
	SetAttr(name string, value any)

	// Attr returns a previously set attribute.
	Attr(name string) (value any, found bool)

	// Execute submits the operation and returns numOutputs handles
	// immediately; their data materializes when the node completes. A
	// fail-fast rejection (executor holding an unrecovered error) is
	// returned synchronously as ErrFailedPrecondition.
	Execute(numOutputs int) ([]*Handle, error)
}

// Context is the live runtime session: it mediates tensor lifecycle,
// execution queuing, device placement policy and function registration.
// All methods may be called concurrently from multiple threads of control
// unless noted; per-thread state is keyed by the ThreadID arguments.
type Context interface {
	// Kind tags which runtime family is active.
	Kind() Kind

	// UsesStreamRuntime reports whether the newer stream family backs this
	// context, purely for callers that must special-case legacy behavior.
	UsesStreamRuntime() bool

	// Typed scalar factories, one per supported primitive type: the typed
	// call makes a dtype mismatch structurally impossible.
	CreateBoolScalar(value bool) *Buffer
	CreateInt8Scalar(value int8) *Buffer
	CreateInt16Scalar(value int16) *Buffer
	CreateInt32Scalar(value int32) *Buffer
	CreateInt64Scalar(value int64) *Buffer
	CreateUint8Scalar(value uint8) *Buffer
	CreateUint16Scalar(value uint16) *Buffer
	CreateUint32Scalar(value uint32) *Buffer
	CreateUint64Scalar(value uint64) *Buffer
	CreateFloat16Scalar(value float16.Float16) *Buffer
	CreateFloat32Scalar(value float32) *Buffer
	CreateFloat64Scalar(value float64) *Buffer
	CreateComplex64Scalar(value complex64) *Buffer
	CreateComplex128Scalar(value complex128) *Buffer
	CreateStringScalar(value string) *Buffer

	// CreateTensor allocates an uninitialized tensor of the given shape.
	// Any negative dimension is ErrInvalidArgument and allocates nothing.
	CreateTensor(dtype dtypes.DType, dims ...int) (*Buffer, error)

	// CreateExternalTensor wraps externally-owned memory without copying.
	// releaser fires exactly once, at buffer release, with the original
	// data and arg; the caller must keep data valid until then.
	CreateExternalTensor(dtype dtypes.DType, dims []int, data []byte, releaser MemoryReleaser, arg any) (*Buffer, error)

	// CreateLocalHandle wraps a buffer as a handle bound to the host CPU
	// device, without copying. The handle takes ownership of the buffer.
	CreateLocalHandle(buffer *Buffer) *Handle

	// CopyTensorHandleToDevice materializes a copy of the handle's data on
	// the named device, through the calling thread's executor. The source
	// handle is not mutated. Unknown or malformed device names return
	// ErrNotFound.
	CopyTensorHandleToDevice(tid ThreadID, h *Handle, deviceName string) (*Handle, error)

	// CreateOperation returns a fresh, unsubmitted operation builder bound
	// to this context and the given thread of control.
	CreateOperation(tid ThreadID) Operation

	// ListDevices returns a snapshot of the devices known to the context.
	ListDevices() []DeviceAttributes

	// HostCPUName returns the parsed name of the host CPU device.
	HostCPUName() ParsedName

	// AsyncWait blocks until all nodes previously submitted on the calling
	// thread's executor completed, returning (and clearing) the first
	// error among them. One thread's AsyncWait never waits on another
	// thread's pending work.
	AsyncWait(tid ThreadID) error

	// AddFunctionDef registers a function so it can be executed as an op.
	// Fails with ErrAlreadyExists if the name is taken.
	AddFunctionDef(fdef *FunctionDef) error

	// FindFunctionDef looks up a registered function by name; it never
	// fails, a missing name returns found == false.
	FindFunctionDef(name string) (fdef *FunctionDef, found bool)

	// SetAllowSoftPlacement toggles falling back to the host CPU when an
	// operation's target device is unknown. Context-wide.
	SetAllowSoftPlacement(enable bool)

	// SetLogDevicePlacement toggles logging of operation placement.
	// Context-wide.
	SetLogDevicePlacement(enable bool)

	// SetThreadLocalDevicePlacementPolicy sets the placement policy for
	// the given thread of control only.
	SetThreadLocalDevicePlacementPolicy(tid ThreadID, policy PlacementPolicy)

	// DevicePlacementPolicy returns the placement policy of the given
	// thread of control, defaulting from the context-global default at
	// first touch.
	DevicePlacementPolicy(tid ThreadID) PlacementPolicy

	// SetShouldStoreGraphs toggles collection into RunMetadata. Toggling
	// off does not clear data already collected.
	SetShouldStoreGraphs(enable bool)

	// ExportRunMetadata transfers ownership of the accumulated metadata to
	// the caller and resets the internal buffer: a second consecutive call
	// yields an empty record.
	ExportRunMetadata() *RunMetadata

	// StartStep opens (or extends, if one is already open) the step
	// resource container bracketing one logical unit of work.
	StartStep()

	// EndStep closes one StartStep. The container and its resources are
	// dropped when the last outstanding StartStep ends; EndStep with no
	// outstanding StartStep is a no-op.
	EndStep()

	// Executor returns the executor bound to the calling thread of
	// control, lazily creating it with the family's default mode.
	Executor(tid ThreadID) *Executor

	// SetExecutorForThread overrides the executor of the given thread of
	// control only.
	SetExecutorForThread(tid ThreadID, executor *Executor)

	// ClearCachesAndThreadExecutors drops cached kernel instantiations and
	// all per-thread executor state (pending nodes are aborted). Later
	// calls lazily recreate executors with default policy.
	ClearCachesAndThreadExecutors()

	// Finalize releases the context's resources. The context is invalid
	// afterwards.
	Finalize()
}

// Constructor takes a family-specific config string (possibly empty) and
// returns a new Context.
type Constructor func(config string) (Context, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a runtime family under the given name. Call it during package
// initialization; importing a family package is what makes it available.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// EagerRuntimeEnv is the environment variable with the default runtime
// configuration, formatted as "<family>:<family_configuration>".
const EagerRuntimeEnv = "EAGER_RUNTIME"

// DefaultConfig is used by New when EagerRuntimeEnv is not set.
// See NewWithConfig for the format.
var DefaultConfig string

// New returns a Context built from, in order of precedence: the
// EAGER_RUNTIME environment variable, the DefaultConfig variable, or the
// first registered family with an empty configuration.
func New() (Context, error) {
	if config, found := os.LookupEnv(EagerRuntimeEnv); found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig builds a Context from a "<family>:<family_configuration>"
// string. An empty family selects the first registered one.
//
// It panics if no runtime family was registered at all -- that is a missing
// import, not a runtime condition.
func NewWithConfig(config string) (Context, error) {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no runtime family registered -- import one, e.g. _ "github.com/eagerml/eager/runtimes/classic"`)
	}
	family := firstRegistered
	familyConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		family = config[:idx]
		familyConfig = config[idx+1:]
	}
	constructor, found := registeredConstructors[family]
	if !found {
		return nil, NotFoundf("no runtime family %q registered (configuration %q)", family, config)
	}
	return constructor(familyConfig)
}
