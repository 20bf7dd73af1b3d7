package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device/keyboard"
)

func TestProcessBootProtocolReport(t *testing.T) {
	d := keyboard.New()
	report := []byte{keyboard.ModLeftShift, 0, keyboard.KeyA, 0, 0, 0, 0, 0}
	var ev canonical.Event
	changed, err := d.Process(report, &ev)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint8(keyboard.ModLeftShift), ev.Modifiers)
	assert.Equal(t, uint8(keyboard.KeyA), ev.Keys[0])
}

func TestProcessNKROReport(t *testing.T) {
	d := keyboard.New()
	report := make([]byte, 34)
	report[0] = keyboard.ModLeftCtrl
	byteIdx := 2 + keyboard.KeyA/8
	report[byteIdx] |= 1 << uint(keyboard.KeyA%8)

	var ev canonical.Event
	_, err := d.Process(report, &ev)
	require.NoError(t, err)
	assert.Equal(t, uint8(keyboard.KeyA), ev.Keys[0])
}

func TestProcessShortReportIgnored(t *testing.T) {
	d := keyboard.New()
	var ev canonical.Event
	changed, err := d.Process([]byte{0x00}, &ev)
	require.NoError(t, err)
	assert.False(t, changed)
}
