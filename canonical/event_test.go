package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
)

func TestClampAxis(t *testing.T) {
	cases := []struct {
		name string
		in   uint8
		want uint8
	}{
		{"zero becomes one", 0, 1},
		{"neutral unchanged", 128, 128},
		{"max unchanged", 255, 255},
		{"one unchanged", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, canonical.ClampAxis(tc.in))
		})
	}
}

func TestEventWireRoundTrip(t *testing.T) {
	ev := canonical.Event{
		DevAddr:     2,
		Instance:    1,
		Type:        canonical.TypeGamepad,
		Transport:   canonical.TransportUSB,
		Buttons:     canonical.ButtonB1 | canonical.ButtonUp,
		ButtonCount: 14,
		Layout:      canonical.LayoutSega6Button,
		Analog:      [8]uint8{128, 130, 1, 255, 1, 0, 255, 0},
		DeltaX:      -5,
		DeltaY:      10,
		DeltaWheel:  -1,
	}

	data, err := ev.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, canonical.WireSize)

	var got canonical.Event
	require.NoError(t, got.UnmarshalBinary(data))

	assert.Equal(t, ev.DevAddr, got.DevAddr)
	assert.Equal(t, ev.Instance, got.Instance)
	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, ev.Buttons, got.Buttons)
	assert.Equal(t, ev.ButtonCount, got.ButtonCount)
	assert.Equal(t, ev.Layout, got.Layout)
	assert.Equal(t, ev.Analog, got.Analog)
	assert.Equal(t, ev.DeltaX, got.DeltaX)
	assert.Equal(t, ev.DeltaY, got.DeltaY)
	assert.Equal(t, ev.DeltaWheel, got.DeltaWheel)
}

func TestEventUnmarshalShort(t *testing.T) {
	var ev canonical.Event
	err := ev.UnmarshalBinary(make([]byte, canonical.WireSize-1))
	assert.Error(t, err)
}
