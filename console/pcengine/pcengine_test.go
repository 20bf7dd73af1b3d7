package pcengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console/pcengine"
	"github.com/usbretro/usbretro/router"
)

func TestComposeSOCDResolvesOppositeDirections(t *testing.T) {
	r := router.New()
	r.AddTarget("pcengine", router.ModeDirect)
	r.Submit(1, 0, canonical.Event{Buttons: canonical.ButtonUp | canonical.ButtonDown | canonical.ButtonLeft | canonical.ButtonRight})

	s := pcengine.New()
	w := s.Compose(r)

	// player 0 occupies the low byte; up survives, down is suppressed,
	// left+right both clear under SOCD.
	b := uint8(w.Lo)
	assert.NotZero(t, b&0x10) // bitUp
	assert.Zero(t, b&0x40)    // bitDown
	assert.Zero(t, b&0x80)    // bitLeft
	assert.Zero(t, b&0x20)    // bitRight
}

func TestComposePacksFivePlayersInto40Bits(t *testing.T) {
	r := router.New()
	r.AddTarget("pcengine", router.ModeDirect)
	for addr := uint8(1); addr <= 5; addr++ {
		r.Submit(addr, 0, canonical.Event{Buttons: canonical.ButtonB1})
	}

	s := pcengine.New()
	w := s.Compose(r)

	for i := 0; i < pcengine.MaxPlayers; i++ {
		b := uint8(w.Lo >> (8 * uint(i)))
		assert.NotZero(t, b&0x01, "player %d bit I should be set", i)
	}
}

func TestComposeUnoccupiedSlotReadsIdle(t *testing.T) {
	r := router.New()
	r.AddTarget("pcengine", router.ModeDirect)

	s := pcengine.New()
	w := s.Compose(r)
	assert.Equal(t, uint8(0xFF), uint8(w.Lo))
}
