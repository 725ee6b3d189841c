package runtimes

// PlacementPolicy governs what happens when an operation consumes an input
// handle that lives on a different device than the one the operation is
// placed on.
//
// The policy is per thread of control: each ThreadID gets its own value,
// initialized from the context-global default at first touch.
type PlacementPolicy int32

const (
	// PlacementExplicit fails the operation if an input is on the wrong
	// device.
	PlacementExplicit PlacementPolicy = iota

	// PlacementWarn copies the input to the right device and logs a warning.
	PlacementWarn

	// PlacementSilent silently copies the input. The copy blocks the
	// operation until it completes, which has a performance cost. This is
	// the default policy.
	PlacementSilent

	// PlacementSilentForInt32 silently copies int32 inputs, and fails for
	// any other dtype.
	PlacementSilentForInt32
)

// String implements fmt.Stringer.
func (p PlacementPolicy) String() string {
	switch p {
	case PlacementExplicit:
		return "PlacementExplicit"
	case PlacementWarn:
		return "PlacementWarn"
	case PlacementSilent:
		return "PlacementSilent"
	case PlacementSilentForInt32:
		return "PlacementSilentForInt32"
	}
	return "PlacementPolicy(?)"
}
