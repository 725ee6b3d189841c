package runtimes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// DeviceAttributes describes one device known to a Context.
//
// The Name is the fully-qualified device name and is unique within a context;
// placement resolution relies only on that uniqueness.
type DeviceAttributes struct {
	// Name is the fully-qualified name, e.g.
	// "/job:localhost/replica:0/task:0/device:CPU:0".
	Name string

	// Type of the device, e.g. "CPU".
	Type string

	// MemoryLimit is the memory available on the device, in bytes.
	// Zero means unknown or unbounded.
	MemoryLimit uint64
}

// String implements fmt.Stringer, pretty-printing the device.
func (d DeviceAttributes) String() string {
	if d.MemoryLimit == 0 {
		return fmt.Sprintf("%s (type %s)", d.Name, d.Type)
	}
	return fmt.Sprintf("%s (type %s, %s)", d.Name, d.Type, humanize.IBytes(d.MemoryLimit))
}

// Default fields used to qualify shorthand device names.
const (
	DefaultJobName = "localhost"
	defaultReplica = 0
	defaultTask    = 0
)

// ParsedName is a device name broken into its components.
type ParsedName struct {
	Job     string
	Replica int
	Task    int
	Type    string
	ID      int
}

// String renders the fully-qualified form of the name.
func (p ParsedName) String() string {
	return fmt.Sprintf("/job:%s/replica:%d/task:%d/device:%s:%d",
		p.Job, p.Replica, p.Task, p.Type, p.ID)
}

// DeviceName returns the fully-qualified name for the given components, with
// job/replica/task defaulted to the local host.
func DeviceName(deviceType string, id int) string {
	return ParsedName{
		Job:     DefaultJobName,
		Replica: defaultReplica,
		Task:    defaultTask,
		Type:    deviceType,
		ID:      id,
	}.String()
}

// ParseDeviceName parses a device name in either the fully-qualified form
// "/job:<job>/replica:<n>/task:<n>/device:<TYPE>:<id>" or the shorthand
// "<TYPE>:<id>" (e.g. "CPU:1"), which is qualified with the local-host
// defaults.
//
// A malformed name returns ErrInvalidArgument.
func ParseDeviceName(name string) (ParsedName, error) {
	if name == "" {
		return ParsedName{}, InvalidArgumentf("empty device name")
	}
	if !strings.HasPrefix(name, "/") {
		// Shorthand "TYPE:id".
		deviceType, idStr, found := strings.Cut(name, ":")
		if !found || deviceType == "" {
			return ParsedName{}, InvalidArgumentf("malformed device name %q", name)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 {
			return ParsedName{}, InvalidArgumentf("malformed device id in %q", name)
		}
		return ParsedName{
			Job:     DefaultJobName,
			Replica: defaultReplica,
			Task:    defaultTask,
			Type:    deviceType,
			ID:      id,
		}, nil
	}

	parsed := ParsedName{ID: -1}
	for _, part := range strings.Split(strings.TrimPrefix(name, "/"), "/") {
		key, value, found := strings.Cut(part, ":")
		if !found {
			return ParsedName{}, InvalidArgumentf("malformed device name %q", name)
		}
		switch key {
		case "job":
			parsed.Job = value
		case "replica", "task":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return ParsedName{}, InvalidArgumentf("malformed %s in device name %q", key, name)
			}
			if key == "replica" {
				parsed.Replica = n
			} else {
				parsed.Task = n
			}
		case "device":
			deviceType, idStr, found := strings.Cut(value, ":")
			if !found || deviceType == "" {
				return ParsedName{}, InvalidArgumentf("malformed device field in %q", name)
			}
			id, err := strconv.Atoi(idStr)
			if err != nil || id < 0 {
				return ParsedName{}, InvalidArgumentf("malformed device id in %q", name)
			}
			parsed.Type = deviceType
			parsed.ID = id
		default:
			return ParsedName{}, InvalidArgumentf("unknown field %q in device name %q", key, name)
		}
	}
	if parsed.Job == "" || parsed.Type == "" || parsed.ID < 0 {
		return ParsedName{}, InvalidArgumentf("incomplete device name %q", name)
	}
	return parsed, nil
}
