package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/registry"
)

type stubDriver struct{ tag string }

func (s *stubDriver) Process(report []byte, ev *canonical.Event) (bool, error) { return true, nil }
func (s *stubDriver) SetOutput(out device.OutputReport) error                  { return nil }

func TestDispatchMatchesByVidPid(t *testing.T) {
	registry.Register(registry.DevTypeDS4, func(vid, pid uint16) bool {
		return vid == 0x054C && pid == 0x09CC
	}, func(o *device.CreateOptions) (device.Driver, error) {
		return &stubDriver{tag: "ds4"}, nil
	})

	drv, ok := registry.Dispatch(0x054C, 0x09CC, 0, nil)
	require.True(t, ok)
	assert.Equal(t, "ds4", drv.(*stubDriver).tag)

	_, ok = registry.Dispatch(0x1234, 0x5678, 0, nil)
	assert.False(t, ok)
}

func TestDispatchFallsBackToKeyboardProtocol(t *testing.T) {
	registry.Register(registry.DevTypeKeyboard, func(vid, pid uint16) bool { return false },
		func(o *device.CreateOptions) (device.Driver, error) { return &stubDriver{tag: "kbd"}, nil })
	registry.RegisterProtocolFallback(registry.DevTypeKeyboard, true)

	drv, ok := registry.Dispatch(0x9999, 0x1111, 1, nil)
	require.True(t, ok)
	assert.Equal(t, "kbd", drv.(*stubDriver).tag)
}

func TestDispatchGenericHIDRejectsWithoutButtons(t *testing.T) {
	registry.Register(registry.DevTypeGeneric, func(vid, pid uint16) bool { return false },
		func(o *device.CreateOptions) (device.Driver, error) { return &stubDriver{tag: "generic"}, nil })
	registry.RegisterGenericHID(registry.DevTypeGeneric, func(desc []byte) (*device.CreateOptions, bool) {
		return nil, len(desc) > 0 && desc[0] == 0xAA
	})

	_, ok := registry.Dispatch(0x0001, 0x0001, 0, []byte{0x00})
	assert.False(t, ok)

	drv, ok := registry.Dispatch(0x0002, 0x0002, 0, []byte{0xAA})
	require.True(t, ok)
	assert.Equal(t, "generic", drv.(*stubDriver).tag)
}
