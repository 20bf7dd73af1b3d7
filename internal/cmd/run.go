package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/usbretro/usbretro/bridge/uart"
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/console/gamecube"
	"github.com/usbretro/usbretro/console/loopy"
	"github.com/usbretro/usbretro/console/nuon"
	"github.com/usbretro/usbretro/console/pcengine"
	"github.com/usbretro/usbretro/console/threedo"
	"github.com/usbretro/usbretro/console/xboxone"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/registry"
	"github.com/usbretro/usbretro/internal/log"
	"github.com/usbretro/usbretro/internal/profile"
	"github.com/usbretro/usbretro/router"
	"github.com/usbretro/usbretro/router/codes"
	"github.com/usbretro/usbretro/usbhost"
	"github.com/usbretro/usbretro/usbhost/realusb"
	"github.com/usbretro/usbretro/usbhost/virtual"
)

// clockRate stands in for the console-specific wire cadence (VSync polls,
// CLK edges, USB's 1ms interrupt) this firmware's host-side Compose/Run
// split runs at absent real PIO hardware to drive it.
const clockRate = time.Millisecond

// Run is the single top-level command: it wires a USB host adapter,
// device/registry decode, the router, a console output stage, and an
// optional bridge target together and runs until interrupted.
type Run struct {
	Console     string        `arg:"" help:"Target console wire protocol" enum:"pcengine,gamecube,loopy,nuon,3do,xboxone"`
	Players     int           `help:"Player count reported in the startup log (not enforced)" default:"4"`
	Transport   string        `help:"USB host transport" enum:"real,virtual" default:"real"`
	VirtualAddr string        `help:"usbip listener address to dial for --transport=virtual" default:"127.0.0.1:3240"`
	VirtualBus  string        `help:"usbip bus id to import for --transport=virtual" default:"1-1"`
	Bridge      BridgeConfig  `embed:"" prefix:"bridge."`
	Profile     ProfileConfig `embed:"" prefix:"profile."`
}

// BridgeConfig configures the optional UART/network bridge output
// target (bridge/uart), a second destination for canonical events
// alongside the selected console build.
type BridgeConfig struct {
	Addr       string `help:"Bridge output address (host:port or serial path); empty disables the bridge"`
	SessionKey string `help:"Hex-encoded 32-byte session key enabling encrypted bridge framing"`
}

// ProfileConfig carries the GameCube stage's per-profile defaults (the
// only stage with configurable analog behavior); ignored by other
// consoles.
type ProfileConfig struct {
	LeftStickScale   float64 `help:"GameCube left-stick scale" default:"0.60"`
	TriggerThreshold uint8   `help:"GameCube analog trigger threshold" default:"200"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := router.Target(r.Console)
	rt := router.New()
	rt.AddTarget(target, router.ModeDirect)

	stage, err := r.buildStage()
	if err != nil {
		return err
	}

	adapter, err := r.buildAdapter()
	if err != nil {
		return fmt.Errorf("usb host transport: %w", err)
	}
	defer adapter.Close()

	sink, err := r.buildBridge()
	if err != nil {
		return fmt.Errorf("bridge target: %w", err)
	}
	if sink != nil {
		defer sink.Close()
	}

	mounts, reports, unmounts, err := adapter.Run(ctx)
	if err != nil {
		return fmt.Errorf("start usb host: %w", err)
	}

	w := newWiring(rt, target, logger, rawLogger, sink)

	clock := make(chan console.ClockEdge, 1)
	tx := make(chan console.WireWord, 1)
	go stage.Run(ctx, clock, tx)
	go w.drainWire(ctx, tx)
	go w.driveClock(ctx, stage, rt, clock)

	logger.Info("usbretro running", "console", r.Console, "transport", r.Transport, "players", r.Players)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case m := <-mounts:
			w.onMount(m)
		case ev := <-reports:
			w.onReport(ev)
		case u := <-unmounts:
			w.onUnmount(u)
		}
	}
}

func (r *Run) buildStage() (console.Stage, error) {
	switch r.Console {
	case "pcengine":
		return pcengine.New(), nil
	case "gamecube":
		rec := profile.Record{
			Name:             "cli",
			LeftStickScale:   r.Profile.LeftStickScale,
			TriggerThreshold: r.Profile.TriggerThreshold,
		}
		return gamecube.NewWithProfile(rec.ToGameCubeProfile()), nil
	case "loopy":
		return loopy.New(), nil
	case "nuon":
		return nuon.New(), nil
	case "3do":
		return threedo.New(), nil
	case "xboxone":
		return xboxone.New(), nil
	default:
		return nil, fmt.Errorf("unknown console %q", r.Console)
	}
}

func (r *Run) buildAdapter() (usbhost.Adapter, error) {
	switch r.Transport {
	case "virtual":
		conn, err := net.Dial("tcp", r.VirtualAddr)
		if err != nil {
			return nil, err
		}
		return virtual.Dial(conn, r.VirtualBus, 1)
	default:
		return realusb.New(nil), nil
	}
}

func (r *Run) buildBridge() (*uart.Sink, error) {
	if r.Bridge.Addr == "" {
		return nil, nil
	}
	conn, err := net.Dial("tcp", r.Bridge.Addr)
	if err != nil {
		return nil, err
	}
	var key []byte
	if r.Bridge.SessionKey != "" {
		key, err = hex.DecodeString(r.Bridge.SessionKey)
		if err != nil {
			return nil, fmt.Errorf("bridge session key: %w", err)
		}
	}
	return uart.Dial(conn, key)
}

// wiring holds the live state connecting usbhost events to the router:
// one device.Driver per mounted (dev_addr, instance), the cheat-code
// detector fed from every submitted event, and the optional bridge.
type wiring struct {
	rt      *router.Router
	target  router.Target
	logger  *slog.Logger
	raw     log.RawLogger
	bridge  *uart.Sink
	konami  *codes.Detector
	mu      sync.Mutex
	drivers map[driverKey]device.Driver
}

type driverKey struct {
	devAddr  uint8
	instance int8
}

func newWiring(rt *router.Router, target router.Target, logger *slog.Logger, raw log.RawLogger, sink *uart.Sink) *wiring {
	return &wiring{
		rt:      rt,
		target:  target,
		logger:  logger,
		raw:     raw,
		bridge:  sink,
		konami:  codes.NewDetector(),
		drivers: make(map[driverKey]device.Driver),
	}
}

func (w *wiring) onMount(m usbhost.MountEvent) {
	drv, ok := registry.Dispatch(m.VID, m.PID, m.Protocol, m.Descriptor)
	if !ok {
		w.logger.Warn("no driver matched mounted device", "dev_addr", m.DevAddr, "vid", m.VID, "pid", m.PID)
		return
	}
	w.mu.Lock()
	w.drivers[driverKey{m.DevAddr, m.Instance}] = drv
	w.mu.Unlock()
	w.logger.Info("device mounted", "dev_addr", m.DevAddr, "instance", m.Instance, "vid", m.VID, "pid", m.PID)
}

func (w *wiring) onReport(ev usbhost.Event) {
	w.raw.Log(true, ev.Report)
	key := driverKey{ev.DevAddr, ev.Instance}
	w.mu.Lock()
	drv, ok := w.drivers[key]
	w.mu.Unlock()
	if !ok {
		return
	}
	var out canonical.Event
	changed, err := drv.Process(ev.Report, &out)
	if err != nil {
		w.logger.Debug("driver decode error", "dev_addr", ev.DevAddr, "error", err)
		return
	}
	if !changed {
		return
	}
	out.DevAddr = ev.DevAddr
	out.Instance = ev.Instance
	w.konami.Feed(out.Buttons)
	w.rt.Submit(ev.DevAddr, ev.Instance, out)
	if w.bridge != nil {
		if err := w.bridge.Send(&out); err != nil {
			w.logger.Warn("bridge send failed", "error", err)
		}
	}
}

func (w *wiring) onUnmount(u usbhost.UnmountEvent) {
	w.rt.RemovePlayersByAddress(u.DevAddr)
	w.mu.Lock()
	for k := range w.drivers {
		if k.devAddr == u.DevAddr {
			delete(w.drivers, k)
		}
	}
	w.mu.Unlock()
	w.logger.Info("device unmounted", "dev_addr", u.DevAddr)
}

// rumbleSource is implemented by console stages that surface an
// out-of-band rumble bit decoded from the wire (gamecube.Stage reads it
// back off ClockEdge.State); stages without rumble feedback simply don't
// implement it.
type rumbleSource interface {
	Rumble() bool
}

// driveClock is core0's analog of a time.Ticker loop: it composes the
// next wire word from the router's current outputs and hands it to the
// stage, runs every mounted driver's outbound feedback (Task polling plus
// SetOutput rumble/LED), then signals a clock edge for Run's core1 analog
// to present it. The edge cycles 3->2->1->0, matching the descending
// presentation-state sequence spec.md's console stages (e.g. PC-Engine's
// byteForState) expect rather than a raw incrementing counter.
func (w *wiring) driveClock(ctx context.Context, stage console.Stage, rt *router.Router, clock chan<- console.ClockEdge) {
	ticker := time.NewTicker(clockRate)
	defer ticker.Stop()
	state := 3
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			word := stage.Compose(rt)
			if p, ok := stage.(interface{ Publish(console.WireWord) }); ok {
				p.Publish(word)
			}

			var out device.OutputReport
			if rs, ok := stage.(rumbleSource); ok && rs.Rumble() {
				out.RumbleLow, out.RumbleHigh = 0xFF, 0xFF
			}
			w.runTasks(out)

			select {
			case clock <- console.ClockEdge{State: state}:
			default:
			}
			state = (state - 1 + 4) % 4
		}
	}
}

// runTasks polls every mounted driver's background Task (handshake
// retries, idle patterns) and pushes the current outbound state to every
// driver capable of acting on it, once per core0 tick.
func (w *wiring) runTasks(out device.OutputReport) {
	w.mu.Lock()
	drivers := make([]device.Driver, 0, len(w.drivers))
	for _, drv := range w.drivers {
		drivers = append(drivers, drv)
	}
	w.mu.Unlock()

	for _, drv := range drivers {
		if tr, ok := drv.(device.TaskRunner); ok {
			tr.Task()
		}
		if err := drv.SetOutput(out); err != nil {
			w.logger.Debug("driver output failed", "error", err)
		}
	}
}

// drainWire consumes the stage's transmitted wire words. A real build
// would push these into PIO-driven GPIO; this host-side build only
// needs the drain to keep Run's send from blocking.
func (w *wiring) drainWire(ctx context.Context, tx <-chan console.WireWord) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tx:
		}
	}
}
