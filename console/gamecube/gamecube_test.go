package gamecube_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console/gamecube"
	"github.com/usbretro/usbretro/router"
)

func TestComposeEncodesFaceButtons(t *testing.T) {
	r := router.New()
	r.AddTarget("gamecube", router.ModeDirect)
	r.Submit(1, 0, canonical.Event{
		Buttons: canonical.ButtonB1 | canonical.ButtonStart,
		Analog:  [8]uint8{0x80, 0x80, 0x80, 0x80, 0, 0, 0, 0},
	})

	s := gamecube.New()
	w := s.Compose(r)

	b0 := uint8(w.Lo)
	assert.NotZero(t, b0&0x01) // A
	assert.NotZero(t, b0&0x10) // Start
}

func TestComposeAnalogTriggerCrossesThresholdToDigitalClick(t *testing.T) {
	r := router.New()
	r.AddTarget("gamecube", router.ModeDirect)
	ev := canonical.Event{Analog: [8]uint8{0x80, 0x80, 0x80, 0x80, 0, 250, 0, 0}}
	ev.Analog[canonical.AxisRightTrigger] = 250
	r.Submit(1, 0, ev)

	s := gamecube.NewWithProfile(gamecube.Profile{LeftStickScale: 1.0, TriggerThreshold: 200})
	w := s.Compose(r)

	b1 := uint8(w.Lo >> 8)
	assert.NotZero(t, b1&0x20) // bit1R
}

func TestComposeScalesLeftStickToward60Percent(t *testing.T) {
	r := router.New()
	r.AddTarget("gamecube", router.ModeDirect)
	ev := canonical.Event{}
	ev.Analog[canonical.AxisLeftX] = 255
	ev.Analog[canonical.AxisLeftY] = 128
	r.Submit(1, 0, ev)

	s := gamecube.New()
	w := s.Compose(r)

	stickX := uint8(w.Lo >> 16)
	// centered delta 127 scaled by 0.6 -> ~76, plus 128 center
	assert.InDelta(t, 204, int(stickX), 2)
}
