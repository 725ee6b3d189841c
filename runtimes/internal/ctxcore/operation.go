package ctxcore

import (
	"maps"

	"k8s.io/klog/v2"

	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/runtimes/kernels"
	"github.com/eagerml/eager/types/dtypes"
)

// operation is the builder behind runtimes.Operation, shared by both
// families. It belongs to one thread of control and is not safe for
// concurrent use; the state it is submitted to is.
type operation struct {
	state  *State
	tid    runtimes.ThreadID
	opName string
	device string
	inputs []*runtimes.Handle
	attrs  map[string]any
}

// NewOperation returns a fresh operation builder bound to the given thread
// of control.
func (s *State) NewOperation(tid runtimes.ThreadID) runtimes.Operation {
	return &operation{state: s, tid: tid}
}

func (o *operation) Reset(opName, deviceName string) error {
	o.opName = opName
	o.device = ""
	o.inputs = o.inputs[:0]
	o.attrs = nil
	if deviceName != "" {
		return o.SetDeviceName(deviceName)
	}
	return nil
}

func (o *operation) OpName() string { return o.opName }

// SetDeviceName validates the name syntax eagerly; whether the device
// actually exists is decided at Execute, where soft placement applies.
func (o *operation) SetDeviceName(deviceName string) error {
	parsed, err := runtimes.ParseDeviceName(deviceName)
	if err != nil {
		return err
	}
	o.device = parsed.String()
	return nil
}

func (o *operation) DeviceName() string { return o.device }

func (o *operation) AddInput(h *runtimes.Handle) error {
	if h == nil {
		return runtimes.InvalidArgumentf("nil input handle for op %q", o.opName)
	}
	o.inputs = append(o.inputs, h)
	return nil
}

func (o *operation) AddInputs(hs ...*runtimes.Handle) error {
	for _, h := range hs {
		if err := o.AddInput(h); err != nil {
			return err
		}
	}
	return nil
}

func (o *operation) NumInputs() int { return len(o.inputs) }

func (o *operation) SetAttr(name string, value any) {
	if o.attrs == nil {
		o.attrs = make(map[string]any)
	}
	o.attrs[name] = value
}

func (o *operation) Attr(name string) (value any, found bool) {
	value, found = o.attrs[name]
	return
}

func (o *operation) Execute(numOutputs int) ([]*runtimes.Handle, error) {
	return o.state.executeOp(o, numOutputs)
}

// resolveTargetDevice picks the device an operation runs on: the explicit
// override if set, the host CPU otherwise. An unknown override falls back to
// the host CPU under soft placement.
func (s *State) resolveTargetDevice(opName, override string) (runtimes.DeviceAttributes, error) {
	name := override
	if name == "" {
		name = s.hostCPU.String()
	}
	device, err := s.lookupDevice(name)
	if err == nil {
		return device, nil
	}
	if s.softPlacement.Load() {
		klog.V(1).Infof("soft placement: op %s falls back from %q to host CPU", opName, name)
		return s.lookupDevice(s.hostCPU.String())
	}
	return runtimes.DeviceAttributes{}, err
}

// placeInput brings one input handle onto the target device according to the
// thread's placement policy. The returned handle carries an extra reference
// owned by the submitted node; owned reports whether it must be released
// when the node is done.
func (s *State) placeInput(o *operation, index int, h *runtimes.Handle, target string, policy runtimes.PlacementPolicy) (placed *runtimes.Handle, owned bool, err error) {
	if h.Device() == target {
		return h, false, nil
	}
	switch policy {
	case runtimes.PlacementExplicit:
		return nil, false, runtimes.InvalidArgumentf(
			"input %d of op %s lives on %s but the op runs on %s, and the placement policy is %s",
			index, o.opName, h.Device(), target, policy)
	case runtimes.PlacementSilentForInt32:
		// Only plain int32 scalars-and-friends move silently; everything
		// else is treated as an explicit mismatch. DType may block on a
		// pending handle, as a copy would anyway.
		if h.DType() != dtypes.Int32 {
			return nil, false, runtimes.InvalidArgumentf(
				"input %d of op %s lives on %s but the op runs on %s, and the %s policy only moves Int32 tensors",
				index, o.opName, h.Device(), target, policy)
		}
	case runtimes.PlacementWarn:
		klog.Warningf("copying input %d of op %s from %s to %s, which may slow execution down",
			index, o.opName, h.Device(), target)
	}
	copied, err := s.CopyTensorHandleToDevice(o.tid, h, target)
	if err != nil {
		return nil, false, err
	}
	return copied, true, nil
}

// executeOp is the submission path shared by both families: resolve the
// target device, enforce the placement policy on each input, then enqueue a
// node that runs the kernel and materializes the output handles.
func (s *State) executeOp(o *operation, numOutputs int) ([]*runtimes.Handle, error) {
	if s.finalized.Load() {
		return nil, runtimes.FailedPreconditionf("context is finalized")
	}
	if o.opName == "" {
		return nil, runtimes.InvalidArgumentf("operation has no op name, call Reset first")
	}
	if numOutputs < 0 {
		return nil, runtimes.InvalidArgumentf("op %s: numOutputs must be >= 0, got %d", o.opName, numOutputs)
	}

	target, err := s.resolveTargetDevice(o.opName, o.device)
	if err != nil {
		return nil, err
	}
	kernel, err := s.lookupKernel(o.opName)
	if err != nil {
		return nil, err
	}

	// Inputs are snapshotted (and retained, directly or through a device
	// copy) at submission: the caller may release its handles or reuse the
	// operation immediately after Execute returns.
	policy := s.DevicePlacementPolicy(o.tid)
	inputs := make([]*runtimes.Handle, len(o.inputs))
	released := func() {
		for _, h := range inputs {
			if h != nil {
				h.Release()
			}
		}
	}
	for i, h := range o.inputs {
		placed, owned, err := s.placeInput(o, i, h, target.Name, policy)
		if err != nil {
			released()
			return nil, err
		}
		if !owned {
			placed.Retain()
		}
		inputs[i] = placed
	}

	if s.logDevicePlacement.Load() {
		klog.Infof("executing op %s on device %s", o.opName, target.Name)
	}

	opName := o.opName
	attrs := maps.Clone(o.attrs)
	outputs := make([]*runtimes.Handle, numOutputs)
	for i := range outputs {
		outputs[i] = runtimes.NewPendingHandle(target.Name)
	}
	poisonAll := func(err error) {
		for _, out := range outputs {
			out.Poison(err)
		}
	}

	node := &runtimes.Node{
		OpName: opName,
		Run: func() error {
			defer released()
			start := nowMicros()
			buffers := make([]*runtimes.Buffer, len(inputs))
			for i, h := range inputs {
				buffer, err := h.Buffer()
				if err != nil {
					err = runtimes.Internalf("op %s: input %d failed upstream: %v", opName, i, err)
					poisonAll(err)
					return err
				}
				buffers[i] = buffer
			}
			results, err := kernel(&kernels.Call{
				OpName: opName,
				Device: target.Name,
				Attrs:  attrs,
				Inputs: buffers,
			})
			if err != nil {
				poisonAll(err)
				return err
			}
			for i, out := range outputs {
				if i < len(results) {
					out.Materialize(results[i])
					continue
				}
				out.Poison(runtimes.Internalf("op %s produced %d outputs, caller expected %d",
					opName, len(results), numOutputs))
			}
			for _, extra := range results[min(len(results), numOutputs):] {
				extra.Release()
			}
			s.recordNodeStats(target.Name, opName, start, nowMicros())
			return nil
		},
		Abort: func(err error) {
			poisonAll(err)
			released()
		},
	}
	if err := s.Executor(o.tid).Submit(node); err != nil {
		poisonAll(err)
		released()
		return nil, err
	}
	return outputs, nil
}

// CopyTensorHandleToDevice schedules a copy of the handle's data onto the
// named device through the calling thread's executor, returning the target
// handle immediately. The source handle is not mutated.
func (s *State) CopyTensorHandleToDevice(tid runtimes.ThreadID, h *runtimes.Handle, deviceName string) (*runtimes.Handle, error) {
	if s.finalized.Load() {
		return nil, runtimes.FailedPreconditionf("context is finalized")
	}
	target, err := s.lookupDevice(deviceName)
	if err != nil {
		return nil, err
	}
	src := h.Retain()
	out := runtimes.NewPendingHandle(target.Name)
	node := &runtimes.Node{
		OpName: "_CopyToDevice",
		Run: func() error {
			defer src.Release()
			start := nowMicros()
			buffer, err := src.Buffer()
			if err != nil {
				err = runtimes.Internalf("copy to %s: source failed upstream: %v", target.Name, err)
				out.Poison(err)
				return err
			}
			out.Materialize(buffer.Clone())
			s.recordNodeStats(target.Name, "_CopyToDevice", start, nowMicros())
			return nil
		},
		Abort: func(err error) {
			out.Poison(err)
			src.Release()
		},
	}
	if err := s.Executor(tid).Submit(node); err != nil {
		src.Release()
		out.Poison(err)
		return nil, err
	}
	return out, nil
}
