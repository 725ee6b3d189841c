package runtimes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceName(t *testing.T) {
	require.Equal(t, "/job:localhost/replica:0/task:0/device:CPU:1", DeviceName("CPU", 1))
}

func TestParseDeviceName(t *testing.T) {
	full := "/job:localhost/replica:0/task:0/device:CPU:1"
	parsed, err := ParseDeviceName(full)
	require.NoError(t, err)
	require.Equal(t, ParsedName{Job: "localhost", Type: "CPU", ID: 1}, parsed)
	require.Equal(t, full, parsed.String())

	// Shorthand is qualified with the local-host defaults.
	parsed, err = ParseDeviceName("CPU:1")
	require.NoError(t, err)
	require.Equal(t, full, parsed.String())

	parsed, err = ParseDeviceName("/job:worker/replica:2/task:3/device:TPU:7")
	require.NoError(t, err)
	require.Equal(t, ParsedName{Job: "worker", Replica: 2, Task: 3, Type: "TPU", ID: 7}, parsed)
}

func TestParseDeviceNameMalformed(t *testing.T) {
	for _, name := range []string{
		"",
		"CPU",
		"CPU:x",
		"CPU:-1",
		":0",
		"/device:CPU:0",            // missing job
		"/job:localhost",           // missing device
		"/job:localhost/gadget:1",  // unknown field
		"/job:localhost/replica:x", // non-numeric replica
	} {
		_, err := ParseDeviceName(name)
		require.ErrorIs(t, err, ErrInvalidArgument, "name %q", name)
	}
}

func TestDeviceAttributesString(t *testing.T) {
	d := DeviceAttributes{Name: DeviceName("CPU", 0), Type: "CPU", MemoryLimit: 256 << 20}
	require.Contains(t, d.String(), "256 MiB")
	d.MemoryLimit = 0
	require.NotContains(t, d.String(), "MiB")
}
