// Package ctxcore holds the context state shared by the runtime families.
//
// A family package (classic, stream) embeds *State and gets the whole
// Context contract; what differs between families -- executor mode, kernel
// caching -- is set through Config at construction.
package ctxcore

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/runtimes/kernels"
	"github.com/eagerml/eager/types/dtypes"
	"github.com/eagerml/eager/types/xsync"
)

// Config selects the family-specific behavior of a State.
type Config struct {
	Kind    runtimes.Kind
	Devices []runtimes.DeviceAttributes

	// AsyncExecutors makes lazily-created per-thread executors drain in
	// the background; otherwise nodes run inline on submission.
	AsyncExecutors bool

	// CacheKernels caches kernel lookups per op name until
	// ClearCachesAndThreadExecutors.
	CacheKernels bool

	// DefaultPlacementPolicy seeds each thread's policy at first touch.
	DefaultPlacementPolicy runtimes.PlacementPolicy
}

// State implements the parts of runtimes.Context common to both families.
type State struct {
	kind           runtimes.Kind
	devices        []runtimes.DeviceAttributes
	hostCPU        runtimes.ParsedName
	asyncExecutors bool
	cacheKernels   bool

	funcs *runtimes.FunctionRegistry

	defaultPolicy atomic.Int32
	policies      xsync.SyncMap[runtimes.ThreadID, runtimes.PlacementPolicy]
	executors     xsync.SyncMap[runtimes.ThreadID, *runtimes.Executor]
	kernelCache   xsync.SyncMap[string, kernels.Kernel]

	softPlacement      atomic.Bool
	logDevicePlacement atomic.Bool
	storeGraphs        atomic.Bool

	metaMu sync.Mutex
	meta   *runtimes.RunMetadata

	stepMu    sync.Mutex
	stepCount int
	step      *stepContainer

	finalized atomic.Bool
}

// stepContainer scopes resources to one logical unit of work bracketed by
// StartStep/EndStep.
type stepContainer struct {
	id        string
	resources xsync.SyncMap[string, any]
}

// NewState builds the shared state. The first device is the host CPU and
// must exist.
func NewState(cfg Config) (*State, error) {
	if len(cfg.Devices) == 0 {
		return nil, runtimes.InvalidArgumentf("a context requires at least one device")
	}
	hostCPU, err := runtimes.ParseDeviceName(cfg.Devices[0].Name)
	if err != nil {
		return nil, err
	}
	s := &State{
		kind:           cfg.Kind,
		devices:        cfg.Devices,
		hostCPU:        hostCPU,
		asyncExecutors: cfg.AsyncExecutors,
		cacheKernels:   cfg.CacheKernels,
		funcs:          runtimes.NewFunctionRegistry(),
		meta:           &runtimes.RunMetadata{SessionID: uuid.NewString()},
	}
	s.defaultPolicy.Store(int32(cfg.DefaultPlacementPolicy))
	return s, nil
}

// ParseDeviceCount parses a family config string of the form "", "<n>" or
// "cpus=<n>" into a device count.
func ParseDeviceCount(config string, defaultCount int) (int, error) {
	config = strings.TrimSpace(config)
	if config == "" {
		return defaultCount, nil
	}
	value := config
	if key, v, found := strings.Cut(config, "="); found {
		if key != "cpus" {
			return 0, runtimes.InvalidArgumentf("unknown runtime configuration %q", config)
		}
		value = v
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, runtimes.InvalidArgumentf("runtime configuration %q: device count must be a positive integer", config)
	}
	return n, nil
}

// CPUDevices returns n host CPU device descriptors, device 0 first.
func CPUDevices(n int) []runtimes.DeviceAttributes {
	devices := make([]runtimes.DeviceAttributes, n)
	for i := range devices {
		devices[i] = runtimes.DeviceAttributes{
			Name:        runtimes.DeviceName("CPU", i),
			Type:        "CPU",
			MemoryLimit: 256 << 20,
		}
	}
	return devices
}

// Kind tags the active runtime family.
func (s *State) Kind() runtimes.Kind { return s.kind }

// UsesStreamRuntime reports whether the stream family backs this context.
func (s *State) UsesStreamRuntime() bool { return s.kind == runtimes.KindStream }

// Typed scalar factories.

func (s *State) CreateBoolScalar(value bool) *runtimes.Buffer { return runtimes.NewScalarBuffer(value) }
func (s *State) CreateInt8Scalar(value int8) *runtimes.Buffer { return runtimes.NewScalarBuffer(value) }
func (s *State) CreateInt16Scalar(value int16) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateInt32Scalar(value int32) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateInt64Scalar(value int64) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateUint8Scalar(value uint8) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateUint16Scalar(value uint16) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateUint32Scalar(value uint32) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateUint64Scalar(value uint64) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateFloat16Scalar(value float16.Float16) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateFloat32Scalar(value float32) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateFloat64Scalar(value float64) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateComplex64Scalar(value complex64) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateComplex128Scalar(value complex128) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}
func (s *State) CreateStringScalar(value string) *runtimes.Buffer {
	return runtimes.NewScalarBuffer(value)
}

// CreateTensor allocates an uninitialized tensor of the given shape.
func (s *State) CreateTensor(dtype dtypes.DType, dims ...int) (*runtimes.Buffer, error) {
	return runtimes.NewBuffer(dtype, dims...)
}

// CreateExternalTensor wraps externally-owned memory without copying.
func (s *State) CreateExternalTensor(dtype dtypes.DType, dims []int, data []byte, releaser runtimes.MemoryReleaser, arg any) (*runtimes.Buffer, error) {
	return runtimes.NewExternalBuffer(dtype, dims, data, releaser, arg)
}

// CreateLocalHandle wraps a buffer as a handle on the host CPU device.
func (s *State) CreateLocalHandle(buffer *runtimes.Buffer) *runtimes.Handle {
	return runtimes.NewReadyHandle(buffer, s.hostCPU.String())
}

// ListDevices returns a snapshot of the known devices.
func (s *State) ListDevices() []runtimes.DeviceAttributes {
	devices := make([]runtimes.DeviceAttributes, len(s.devices))
	copy(devices, s.devices)
	return devices
}

// HostCPUName returns the parsed name of the host CPU device.
func (s *State) HostCPUName() runtimes.ParsedName { return s.hostCPU }

// lookupDevice resolves a device name (full or shorthand form) against the
// context's device list. Malformed and unknown names both come back as
// ErrNotFound: from the caller's perspective the device does not exist.
func (s *State) lookupDevice(name string) (runtimes.DeviceAttributes, error) {
	parsed, err := runtimes.ParseDeviceName(name)
	if err != nil {
		return runtimes.DeviceAttributes{}, runtimes.NotFoundf("device %q: %v", name, err)
	}
	canonical := parsed.String()
	for _, d := range s.devices {
		if d.Name == canonical {
			return d, nil
		}
	}
	return runtimes.DeviceAttributes{}, runtimes.NotFoundf("device %q is not known to this context", name)
}

// AddFunctionDef registers fdef; ErrAlreadyExists on a duplicate name.
func (s *State) AddFunctionDef(fdef *runtimes.FunctionDef) error {
	if err := s.funcs.Add(fdef); err != nil {
		return err
	}
	if s.storeGraphs.Load() {
		s.metaMu.Lock()
		s.meta.FunctionGraphs = append(s.meta.FunctionGraphs, fdef.Name)
		s.metaMu.Unlock()
	}
	return nil
}

// FindFunctionDef looks up a registered function; never fails.
func (s *State) FindFunctionDef(name string) (*runtimes.FunctionDef, bool) {
	return s.funcs.Find(name)
}

// SetAllowSoftPlacement toggles host-CPU fallback for unknown devices.
func (s *State) SetAllowSoftPlacement(enable bool) { s.softPlacement.Store(enable) }

// SetLogDevicePlacement toggles placement logging.
func (s *State) SetLogDevicePlacement(enable bool) { s.logDevicePlacement.Store(enable) }

// SetThreadLocalDevicePlacementPolicy sets the policy for one thread of
// control.
func (s *State) SetThreadLocalDevicePlacementPolicy(tid runtimes.ThreadID, policy runtimes.PlacementPolicy) {
	s.policies.Store(tid, policy)
}

// DevicePlacementPolicy returns the thread's policy, seeding it from the
// context default at first touch.
func (s *State) DevicePlacementPolicy(tid runtimes.ThreadID) runtimes.PlacementPolicy {
	policy, _ := s.policies.LoadOrStore(tid, runtimes.PlacementPolicy(s.defaultPolicy.Load()))
	return policy
}

// SetShouldStoreGraphs toggles RunMetadata collection. Turning it off keeps
// what was already collected.
func (s *State) SetShouldStoreGraphs(enable bool) { s.storeGraphs.Store(enable) }

// ShouldStoreGraphs reports whether collection is on.
func (s *State) ShouldStoreGraphs() bool { return s.storeGraphs.Load() }

// ExportRunMetadata hands the accumulated metadata to the caller and resets
// the internal buffer; a second consecutive call yields an empty record.
func (s *State) ExportRunMetadata() *runtimes.RunMetadata {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	exported := s.meta
	s.meta = &runtimes.RunMetadata{SessionID: uuid.NewString()}
	return exported
}

// recordNodeStats appends one node timing if collection is on.
func (s *State) recordNodeStats(device, opName string, startMicros, endMicros int64) {
	if !s.storeGraphs.Load() {
		return
	}
	s.metaMu.Lock()
	s.meta.NodeStats = append(s.meta.NodeStats, runtimes.NodeStats{
		Device:         device,
		OpName:         opName,
		AllStartMicros: startMicros,
		AllEndMicros:   endMicros,
	})
	s.metaMu.Unlock()
}

func nowMicros() int64 { return time.Now().UnixMicro() }

// StartStep opens the step resource container, or extends it if a step is
// already open: StartStep calls are counted, not nested.
func (s *State) StartStep() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	s.stepCount++
	if s.step == nil {
		s.step = &stepContainer{id: uuid.NewString()}
	}
}

// EndStep closes one StartStep, dropping the container and its resources
// when the last outstanding one ends. A no-op if no StartStep is open.
func (s *State) EndStep() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.stepCount == 0 {
		return
	}
	s.stepCount--
	if s.stepCount == 0 {
		s.step.resources.Clear()
		s.step = nil
	}
}

// StepContainerID returns the id of the open step container, if any. A
// family-specific extension, reachable after a Kind check and downcast.
func (s *State) StepContainerID() (id string, open bool) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.step == nil {
		return "", false
	}
	return s.step.id, true
}

// Executor returns the thread's executor, lazily created in the family's
// default mode.
func (s *State) Executor(tid runtimes.ThreadID) *runtimes.Executor {
	if executor, found := s.executors.Load(tid); found {
		return executor
	}
	executor, _ := s.executors.LoadOrStore(tid, runtimes.NewExecutor(s.asyncExecutors))
	return executor
}

// SetExecutorForThread overrides the executor of one thread of control.
func (s *State) SetExecutorForThread(tid runtimes.ThreadID, executor *runtimes.Executor) {
	s.executors.Store(tid, executor)
}

// AsyncWait drains the calling thread's executor, returning and clearing
// the first error. Threads that never submitted have nothing to wait for.
func (s *State) AsyncWait(tid runtimes.ThreadID) error {
	executor, found := s.executors.Load(tid)
	if !found {
		return nil
	}
	return executor.WaitForAllPending()
}

// ClearCachesAndThreadExecutors drops cached kernel instantiations and all
// per-thread executor state; pending nodes are aborted. Executors are
// lazily recreated with default policy afterwards.
func (s *State) ClearCachesAndThreadExecutors() {
	s.executors.Range(func(tid runtimes.ThreadID, executor *runtimes.Executor) bool {
		executor.Shutdown()
		return true
	})
	s.executors.Clear()
	s.kernelCache.Clear()
	klog.V(2).Info("cleared kernel caches and thread executors")
}

// lookupKernel resolves the kernel for an op, caching per the family config.
func (s *State) lookupKernel(opName string) (kernels.Kernel, error) {
	if s.cacheKernels {
		if kernel, found := s.kernelCache.Load(opName); found {
			return kernel, nil
		}
	}
	kernel, found := kernels.Lookup(opName)
	if !found {
		return nil, runtimes.NotFoundf("no kernel registered for op %q", opName)
	}
	if s.cacheKernels {
		s.kernelCache.Store(opName, kernel)
	}
	return kernel, nil
}

// Finalize shuts down the executors and invalidates the context.
func (s *State) Finalize() {
	if !s.finalized.CompareAndSwap(false, true) {
		return
	}
	s.ClearCachesAndThreadExecutors()
}
