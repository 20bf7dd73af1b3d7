package canonical

// DecodeHat normalizes a standard 8-way HID hat-switch value (0=N,
// 1=NE ... 7=NW, 8=neutral) into the four canonical d-pad directions.
// Any value above 8 is clamped to neutral per the descriptor parser's
// hat-decoding rule.
func DecodeHat(hat uint8) (up, right, down, left bool) {
	if hat > 8 {
		hat = 8
	}
	switch hat {
	case 0:
		return true, false, false, false
	case 1:
		return true, true, false, false
	case 2:
		return false, true, false, false
	case 3:
		return false, true, true, false
	case 4:
		return false, false, true, false
	case 5:
		return false, false, true, true
	case 6:
		return false, false, false, true
	case 7:
		return true, false, false, true
	default: // 8: neutral
		return false, false, false, false
	}
}

// DecodeHatClassic normalizes the DualShock-classic hat encoding, which
// uses the even values 0,2,4,...,14 for the four cardinals and their
// diagonals and reserves every odd value (15 in particular) for neutral,
// rather than the standard 0..7 compass. Odd and out-of-range values are
// clamped to neutral before the /2 compass decode so they never alias
// onto a real direction.
func DecodeHatClassic(hat uint8) (up, right, down, left bool) {
	if hat > 14 || hat%2 != 0 {
		return false, false, false, false
	}
	return DecodeHat(hat / 2)
}

// ApplySOCD resolves simultaneous-opposing-cardinal-direction input: if
// both up and down are held, only up survives; if both left and right are
// held, neither survives.
func ApplySOCD(buttons uint32) uint32 {
	if buttons&ButtonUp != 0 && buttons&ButtonDown != 0 {
		buttons &^= ButtonDown
	}
	if buttons&ButtonLeft != 0 && buttons&ButtonRight != 0 {
		buttons &^= (ButtonLeft | ButtonRight)
	}
	return buttons
}

// MapSega6Button applies the positional (not semantic) mapping that every
// Sega-layout 6-button pad uses: top-row-left, mid-top, right-top,
// bottom-left, mid-bottom, right-bottom map to B3, B4, R1, B1, B2, R2
// respectively. Callers pass the six physical button states in that
// physical order; the returned mask also sets Layout = SEGA_6BUTTON on
// the caller's behalf via the returned Layout value.
func MapSega6Button(topLeft, midTop, topRight, botLeft, midBot, botRight bool) (buttons uint32, layout Layout) {
	if topLeft {
		buttons |= ButtonB3
	}
	if midTop {
		buttons |= ButtonB4
	}
	if topRight {
		buttons |= ButtonR1
	}
	if botLeft {
		buttons |= ButtonB1
	}
	if midBot {
		buttons |= ButtonB2
	}
	if botRight {
		buttons |= ButtonR2
	}
	return buttons, LayoutSega6Button
}
