package mouse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device/mouse"
)

func TestProcessBootProtocolReport(t *testing.T) {
	d := mouse.New()
	var ev canonical.Event
	changed, err := d.Process([]byte{mouse.ButtonLeft, 10, byte(int8(-5))}, &ev)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotZero(t, ev.Buttons&canonical.ButtonB1)
	assert.Equal(t, int8(10), ev.DeltaX)
	assert.Equal(t, int8(-5), ev.DeltaY)
}

func TestProcessFullReportWithWheel(t *testing.T) {
	d := mouse.New()
	report := make([]byte, 9)
	report[0] = mouse.ButtonRight
	report[1], report[2] = 5, 0   // dx=5
	report[3], report[4] = 0, 0   // dy=0
	report[5], report[6] = 0xFF, 0xFF // wheel=-1

	var ev canonical.Event
	_, err := d.Process(report, &ev)
	require.NoError(t, err)
	assert.NotZero(t, ev.Buttons&canonical.ButtonB2)
	assert.Equal(t, int8(5), ev.DeltaX)
	assert.Equal(t, int8(-1), ev.DeltaWheel)
}

func TestProcessShortReportIgnored(t *testing.T) {
	d := mouse.New()
	var ev canonical.Event
	changed, err := d.Process([]byte{0x00}, &ev)
	require.NoError(t, err)
	assert.False(t, changed)
}
