package ds4_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device/ds4"
)

func neutralReport() []byte {
	r := make([]byte, 40)
	r[0] = ds4.ReportIDInput
	r[1] = 128 // LX
	r[2] = 128 // LY
	r[3] = 128 // RX
	r[4] = 128 // RY
	r[5] = 0x08 // dpad neutral, no face buttons
	return r
}

func TestProcessNeutralReport(t *testing.T) {
	d := ds4.New()
	var ev canonical.Event
	changed, err := d.Process(neutralReport(), &ev)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint8(128), ev.Analog[canonical.AxisLeftX])
	assert.Equal(t, uint32(0), ev.Buttons)
}

func TestProcessCrossAndUp(t *testing.T) {
	d := ds4.New()
	r := neutralReport()
	r[5] = 0x00 | (0x02 << 4) // hat=up(0), cross pressed
	var ev canonical.Event
	_, err := d.Process(r, &ev)
	require.NoError(t, err)
	assert.NotZero(t, ev.Buttons&canonical.ButtonUp)
	assert.NotZero(t, ev.Buttons&canonical.ButtonB1)
}

func TestProcessShoulderButtons(t *testing.T) {
	d := ds4.New()
	r := neutralReport()
	r[6] = 0x01 | 0x02 // L1 + R1
	var ev canonical.Event
	_, err := d.Process(r, &ev)
	require.NoError(t, err)
	assert.NotZero(t, ev.Buttons&canonical.ButtonL1)
	assert.NotZero(t, ev.Buttons&canonical.ButtonR1)
}

func TestProcessShortReportIgnored(t *testing.T) {
	d := ds4.New()
	var ev canonical.Event
	changed, err := d.Process(make([]byte, 2), &ev)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestProcessDebouncesUnchangedReport(t *testing.T) {
	d := ds4.New()
	var ev canonical.Event
	r := neutralReport()
	_, err := d.Process(r, &ev)
	require.NoError(t, err)

	changed, err := d.Process(r, &ev)
	require.NoError(t, err)
	assert.False(t, changed)
}
