package codes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/router/codes"
)

func feedSequence(d *codes.Detector, edges []uint32) {
	for _, e := range edges {
		d.Feed(e)
		d.Feed(0)
	}
}

func TestDetectorTogglesFunOnKonamiMatch(t *testing.T) {
	d := codes.NewDetector()
	assert.False(t, d.Fun())

	feedSequence(d, codes.Sequence[:])
	assert.True(t, d.Fun())

	feedSequence(d, codes.Sequence[:])
	assert.False(t, d.Fun())
}

func TestDetectorIgnoresUnwatchedButtons(t *testing.T) {
	d := codes.NewDetector()
	d.Feed(canonical.ButtonStart)
	d.Feed(0)
	assert.False(t, d.Fun())
}

func TestDetectorRequiresExactOrder(t *testing.T) {
	d := codes.NewDetector()
	scrambled := []uint32{
		canonical.ButtonDown, canonical.ButtonUp,
		canonical.ButtonDown, canonical.ButtonDown,
		canonical.ButtonLeft, canonical.ButtonRight,
		canonical.ButtonLeft, canonical.ButtonRight,
		canonical.ButtonB2, canonical.ButtonB1,
	}
	feedSequence(d, scrambled)
	assert.False(t, d.Fun())
}
