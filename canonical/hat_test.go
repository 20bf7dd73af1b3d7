package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/canonical"
)

func TestDecodeHatRoundTrip(t *testing.T) {
	cases := []struct {
		hat                         uint8
		up, right, down, left       bool
	}{
		{0, true, false, false, false},
		{1, true, true, false, false},
		{2, false, true, false, false},
		{3, false, true, true, false},
		{4, false, false, true, false},
		{5, false, false, true, true},
		{6, false, false, false, true},
		{7, true, false, false, true},
		{8, false, false, false, false},
	}
	for _, tc := range cases {
		up, right, down, left := canonical.DecodeHat(tc.hat)
		assert.Equalf(t, tc.up, up, "hat=%d up", tc.hat)
		assert.Equalf(t, tc.right, right, "hat=%d right", tc.hat)
		assert.Equalf(t, tc.down, down, "hat=%d down", tc.hat)
		assert.Equalf(t, tc.left, left, "hat=%d left", tc.hat)
	}
}

func TestDecodeHatAboveNeutralClampsToNeutral(t *testing.T) {
	for hat := uint8(9); hat < 16; hat++ {
		up, right, down, left := canonical.DecodeHat(hat)
		assert.False(t, up || right || down || left, "hat=%d should decode to all-false", hat)
	}
}

func TestDecodeHatClassic(t *testing.T) {
	// DualShock classic uses the even values 0..14 as directions (0 = up,
	// 8 = down); odd values and anything above 14 are neutral.
	up, right, down, left := canonical.DecodeHatClassic(0)
	assert.True(t, up)
	assert.False(t, right || down || left)

	up, right, down, left = canonical.DecodeHatClassic(15)
	assert.False(t, up || right || down || left)
}

func TestApplySOCD(t *testing.T) {
	up := canonical.ApplySOCD(canonical.ButtonUp | canonical.ButtonDown)
	assert.NotZero(t, up&canonical.ButtonUp)
	assert.Zero(t, up&canonical.ButtonDown)

	lr := canonical.ApplySOCD(canonical.ButtonLeft | canonical.ButtonRight)
	assert.Zero(t, lr&(canonical.ButtonLeft|canonical.ButtonRight))

	unaffected := canonical.ApplySOCD(canonical.ButtonB1)
	assert.Equal(t, canonical.ButtonB1, unaffected)
}

func TestMapSega6Button(t *testing.T) {
	buttons, layout := canonical.MapSega6Button(true, true, true, true, true, true)
	assert.Equal(t, canonical.LayoutSega6Button, layout)
	want := canonical.ButtonB3 | canonical.ButtonB4 | canonical.ButtonR1 |
		canonical.ButtonB1 | canonical.ButtonB2 | canonical.ButtonR2
	assert.Equal(t, want, buttons)
}
