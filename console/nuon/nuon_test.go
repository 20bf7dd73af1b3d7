package nuon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console/nuon"
	"github.com/usbretro/usbretro/router"
)

func TestComposeAdvertisesCapabilities(t *testing.T) {
	r := router.New()
	r.AddTarget("nuon", router.ModeDirect)

	s := nuon.New()
	w := s.Compose(r)
	assert.Equal(t, uint64(nuon.Capabilities), w.Hi)
}

func TestSoftResetRequiresSustainedHold(t *testing.T) {
	r := router.New()
	r.AddTarget("nuon", router.ModeDirect)
	combo := canonical.ButtonA1 | canonical.ButtonStart | canonical.ButtonL1 | canonical.ButtonR1
	r.Submit(1, 0, canonical.Event{Buttons: combo})

	s := nuon.New()
	for i := 0; i < 50; i++ {
		s.Compose(r)
	}
	assert.False(t, s.SoftResetRequested())

	for i := 0; i < 100; i++ {
		s.Compose(r)
	}
	assert.True(t, s.SoftResetRequested())
}
