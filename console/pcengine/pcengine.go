// Package pcengine implements the PC-Engine/TurboGrafx-16 controller
// wire stage: a 2/3/6-button pad and mouse, five players packed into a
// single 40-bit wire word, grounded on spec.md §4.F's description of the
// console's own state-cycle multiplexing protocol (this is the hardest
// scheduler in the corpus, per spec.md's own framing, since it is the
// only target that time-divisions five players' worth of state through
// a 4-phase cycle on a single clock).
package pcengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
)

// MaxPlayers is the PC-Engine multitap's player count.
const MaxPlayers = 5

// ButtonMode selects which byte a player's pad presents in states 2/0.
type ButtonMode uint8

const (
	ModeTwoButton ButtonMode = iota
	ModeSixButton
	ModeThreeButtonSel
	ModeThreeButtonRun
)

// Bit positions within the 8-bit presentation byte, MSB-first as the
// console shifts them: Left Down Right Up Run Sel II I.
const (
	bitI uint8 = 1 << iota
	bitII
	bitSel
	bitRun
	bitUp
	bitRight
	bitDown
	bitLeft
)

// Bit positions within the extended byte presented by 6-button pads in
// states 2 and 0: III IV V VI 0 0 0 0.
const (
	bitIII uint8 = 1 << (4 + iota)
	bitIV
	bitV
	bitVI
)

// turboDivisor selects the XOR-toggle frequency as cpuFreq/(1MHz*div);
// fast is selected by holding L1, slow is the default.
const (
	turboDivisorSlow = 6
	turboDivisorFast = 3
)

type playerState struct {
	mode      ButtonMode
	mouseMode bool

	// hotkey debounce: Run+Dpad combo must transition from not-held to
	// held to select a mode, so holding it doesn't re-toggle every tick.
	hotkeyArmed bool

	turboTick uint64

	accumX, accumY int32
}

// Stage implements console.Stage for the PC-Engine.
type Stage struct {
	mu      sync.Mutex
	state   int32 // 3,2,1,0 cycling
	players [MaxPlayers]playerState

	outputExclude atomic.Bool
	word0, word1  atomic.Uint64
}

// New returns a Stage with every player defaulted to 2-button mode.
func New() *Stage {
	s := &Stage{state: 3}
	return s
}

// byteForState returns the 8-bit presentation byte a single player
// offers at the given 3/2/1/0 cycle state, applying SOCD and turbo.
func (s *Stage) byteForState(i int, ev *canonical.Event, state int) uint8 {
	p := &s.players[i]

	if p.mouseMode {
		return s.mouseNibble(p, state)
	}

	buttons := ev.Buttons
	up, down := buttons&canonical.ButtonUp != 0, buttons&canonical.ButtonDown != 0
	left, right := buttons&canonical.ButtonLeft != 0, buttons&canonical.ButtonRight != 0
	if up && down {
		down = false
	}
	if left && right {
		left, right = false, false
	}

	var b uint8
	if up {
		b |= bitUp
	}
	if down {
		b |= bitDown
	}
	if left {
		b |= bitLeft
	}
	if right {
		b |= bitRight
	}
	if buttons&canonical.ButtonSelect != 0 {
		b |= bitSel
	}
	if buttons&canonical.ButtonStart != 0 {
		b |= bitRun
	}

	btnI := buttons&canonical.ButtonB1 != 0
	btnII := buttons&canonical.ButtonB2 != 0
	if btnI && s.turboActive(p, canonical.ButtonL2, ev) {
		btnI = s.turboBit(p, ev)
	}
	if btnII && s.turboActive(p, canonical.ButtonR2, ev) {
		btnII = s.turboBit(p, ev)
	}
	if btnI {
		b |= bitI
	}
	if btnII {
		b |= bitII
	}

	extended := (state == 2 || state == 0) && p.mode == ModeSixButton
	if !extended {
		return b
	}

	var ext uint8
	if buttons&canonical.ButtonB3 != 0 {
		ext |= bitIII
	}
	if buttons&canonical.ButtonB4 != 0 {
		ext |= bitIV
	}
	if buttons&canonical.ButtonL1 != 0 {
		ext |= bitV
	}
	if buttons&canonical.ButtonR1 != 0 {
		ext |= bitVI
	}
	return ext
}

// turboActive reports whether turbo should be applied to a face button:
// held gate is always the face button itself, divisor/on-off is a
// design simplification where L2/R2 held arms turbo for II/I
// respectively (the original selects fast/slow via L1/R1; here L1/R1
// select the divisor and L2/R2 arm turbo, since canonical.Event has no
// dedicated turbo-enable bit).
func (s *Stage) turboActive(p *playerState, gate uint32, ev *canonical.Event) bool {
	return ev.Buttons&gate != 0
}

func (s *Stage) turboBit(p *playerState, ev *canonical.Event) bool {
	divisor := uint64(turboDivisorSlow)
	if ev.Buttons&canonical.ButtonL1 != 0 {
		divisor = turboDivisorFast
	}
	return (p.turboTick/divisor)%2 == 0
}

// mouseNibble returns the nibble-packed byte for mouse mode: states
// 3/2/1/0 present high-X, low-X, high-Y, low-Y, each halved by the same
// >>1 shift the original update_output() applies to output_analog_1x/1y
// before nibble extraction.
func (s *Stage) mouseNibble(p *playerState, state int) uint8 {
	x, y := p.accumX>>1, p.accumY>>1
	switch state {
	case 3:
		return uint8(x>>4) & 0x0F
	case 2:
		return uint8(x) & 0x0F
	case 1:
		return uint8(y>>4) & 0x0F
	default:
		return uint8(y) & 0x0F
	}
}

// applyHotkeys checks for a Run+Dpad combo newly going held on this
// player's event and updates its button mode, grounded on spec.md
// §4.F's "Run+Dpad combos select 2-button, 6-button, 3-button-Sel,
// 3-button-Run".
func (s *Stage) applyHotkeys(i int, ev *canonical.Event) {
	p := &s.players[i]
	runHeld := ev.Buttons&canonical.ButtonStart != 0
	if !runHeld {
		p.hotkeyArmed = true
		return
	}
	if !p.hotkeyArmed {
		return
	}
	switch {
	case ev.Buttons&canonical.ButtonUp != 0:
		p.mode = ModeTwoButton
	case ev.Buttons&canonical.ButtonDown != 0:
		p.mode = ModeSixButton
	case ev.Buttons&canonical.ButtonLeft != 0:
		p.mode = ModeThreeButtonSel
	case ev.Buttons&canonical.ButtonRight != 0:
		p.mode = ModeThreeButtonRun
	default:
		return
	}
	p.hotkeyArmed = false
}

// Compose reads the router's current per-player outputs and packs all
// five players' presentation bytes for the *current* cycle state into a
// single 40-bit word in WireWord.Lo (Hi is 0). This is not the literal
// hardware layout, just this firmware's own bit-packing: 8 bits per
// player, player i in bits 8i..8i+7, players 0-4 occupying bits 0-39.
func (s *Stage) Compose(r *router.Router) console.WireWord {
	s.mu.Lock()
	state := int(atomic.LoadInt32(&s.state))
	var word uint64
	for i := 0; i < MaxPlayers; i++ {
		ev := r.Output(router.Target("pcengine"), i)
		var b uint8 = 0xFF // an unoccupied slot reads 0xFF, the all-released value of the active-low wire; occupied slots are composed active-high by byteForState, where 0 means "nothing pressed"
		if ev != nil {
			s.players[i].mouseMode = ev.Type == canonical.TypeMouse
			s.applyHotkeys(i, ev)
			b = s.byteForState(i, ev, state)
			if dx, dy := r.Players().ConsumeMouse(i); dx != 0 || dy != 0 {
				s.players[i].accumX += dx
				s.players[i].accumY += dy
			}
		}
		word |= uint64(b) << (8 * uint(i))
	}
	s.mu.Unlock()
	return console.WireWord{Lo: word}
}

// Run is the core1 analog: blocks on clock edges, advances the 3-2-1-0
// cycle, pushes the composed word, and on reaching state 0 clears each
// player's mouse accumulator (consumed by this scan) while holding
// outputExclude so Compose's concurrent writers don't race a live scan,
// clearing it again on a 600us idle timeout exactly as spec.md §5
// describes.
func (s *Stage) Run(ctx context.Context, clock <-chan console.ClockEdge, tx chan<- console.WireWord) {
	idle := time.NewTimer(600 * time.Microsecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case edge, ok := <-clock:
			if !ok {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}

			s.mu.Lock()
			s.state = int32(edge.State)
			for i := range s.players {
				s.players[i].turboTick++
				if edge.State == 0 {
					s.players[i].accumX, s.players[i].accumY = 0, 0
				}
			}
			s.mu.Unlock()

			if edge.State == 0 {
				s.outputExclude.Store(true)
			}

			select {
			case tx <- console.WireWord{Lo: s.word0.Load(), Hi: s.word1.Load()}:
			default:
			}

			next := (edge.State - 1 + 4) % 4
			atomic.StoreInt32(&s.state, int32(next))

			idle.Reset(600 * time.Microsecond)
		case <-idle.C:
			s.outputExclude.Store(false)
			idle.Reset(600 * time.Microsecond)
		}
	}
}

// Publish lets the main loop's core0-side ticker push a freshly composed
// word into the state Run transmits on the next edge, without Run itself
// calling Compose (keeping Run allocation-free and non-blocking on the
// router, per spec.md §5's "core1 never allocates").
func (s *Stage) Publish(w console.WireWord) {
	if s.outputExclude.Load() {
		return
	}
	s.word0.Store(w.Lo)
	s.word1.Store(w.Hi)
}
