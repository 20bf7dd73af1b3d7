// Package realusb implements usbhost.Adapter against physical USB
// hardware via github.com/google/gousb, the one non-virtual USB host
// transport this firmware ships.
//
// Grounded on dalmatheo-procon2-driver: the same open-devices-by-VID
// filter, interrupt/bulk endpoint claiming, and scan-loop shape, adapted
// from a single-controller standalone driver into a multi-instance
// usbhost.Adapter that feeds the shared router instead of uinput.
package realusb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/usbretro/usbretro/usbhost"
)

// ScanInterval is how often Run polls the bus for newly attached or
// removed devices, mirroring the teacher's 2-second Scan loop.
const ScanInterval = 2 * time.Second

// ClassFilter decides whether a discovered device should be claimed.
// The zero value accepts any HID-class device.
type ClassFilter func(desc *gousb.DeviceDesc) bool

// AcceptHID is the default ClassFilter: any device presenting the USB
// HID base class (0x03) on any alternate setting of any interface in any
// of its configurations.
func AcceptHID(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassHID {
					return true
				}
			}
		}
	}
	return false
}

type claimedDevice struct {
	devAddr uint8
	dev     *gousb.Device
	cfg     *gousb.Config
	iface   *gousb.Interface
	epIn    *gousb.InEndpoint
	epOut   *gousb.OutEndpoint
	stop    chan struct{}
}

// Adapter is a usbhost.Adapter backed by a gousb.Context, polling for
// device attach/detach on ScanInterval and streaming interrupt-IN
// reports from every claimed device.
type Adapter struct {
	ctx    *gousb.Context
	filter ClassFilter

	mu      sync.Mutex
	claimed map[string]*claimedDevice
	nextAddr uint8
}

// New opens a gousb USB context. Call Close to release it.
func New(filter ClassFilter) *Adapter {
	if filter == nil {
		filter = AcceptHID
	}
	return &Adapter{
		ctx:      gousb.NewContext(),
		filter:   filter,
		claimed:  make(map[string]*claimedDevice),
		nextAddr: 1,
	}
}

// Run polls the bus every ScanInterval, claiming newly visible devices
// and emitting mount/report/unmount events until ctx is canceled.
func (a *Adapter) Run(ctx context.Context) (<-chan usbhost.MountEvent, <-chan usbhost.Event, <-chan usbhost.UnmountEvent, error) {
	mounts := make(chan usbhost.MountEvent, 8)
	reports := make(chan usbhost.Event, 64)
	unmounts := make(chan usbhost.UnmountEvent, 8)

	go func() {
		ticker := time.NewTicker(ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.closeAll()
				close(reports)
				return
			case <-ticker.C:
				a.scan(ctx, mounts, reports, unmounts)
			}
		}
	}()

	return mounts, reports, unmounts, nil
}

func (a *Adapter) scan(ctx context.Context, mounts chan<- usbhost.MountEvent, reports chan<- usbhost.Event, unmounts chan<- usbhost.UnmountEvent) {
	devs, err := a.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return a.filter(desc)
	})
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool, len(devs))
	for _, dev := range devs {
		uid := busUID(dev.Desc.Bus, dev.Desc.Address)
		seen[uid] = true
		if _, ok := a.claimed[uid]; ok {
			dev.Close()
			continue
		}
		cd, mount, err := a.claim(dev)
		if err != nil {
			dev.Close()
			continue
		}
		a.claimed[uid] = cd
		mounts <- mount
		go a.poll(ctx, cd, reports, unmounts)
	}

	for uid, cd := range a.claimed {
		if !seen[uid] {
			a.release(uid, cd)
			unmounts <- usbhost.UnmountEvent{DevAddr: cd.devAddr}
		}
	}
}

func (a *Adapter) claim(dev *gousb.Device) (*claimedDevice, usbhost.MountEvent, error) {
	desc := dev.Desc

	cfg, err := dev.Config(1)
	if err != nil {
		return nil, usbhost.MountEvent{}, fmt.Errorf("open config: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, usbhost.MountEvent{}, fmt.Errorf("claim interface: %w", err)
	}

	var epIn *gousb.InEndpoint
	var epOut *gousb.OutEndpoint
	for _, e := range intf.Setting.Endpoints {
		if e.Direction == gousb.EndpointDirectionIn && epIn == nil {
			if ep, err := intf.InEndpoint(e.Number); err == nil {
				epIn = ep
			}
		}
		if e.Direction == gousb.EndpointDirectionOut && epOut == nil {
			if ep, err := intf.OutEndpoint(e.Number); err == nil {
				epOut = ep
			}
		}
	}
	if epIn == nil {
		intf.Close()
		cfg.Close()
		return nil, usbhost.MountEvent{}, fmt.Errorf("no interrupt-IN endpoint")
	}

	devAddr := a.nextAddr
	a.nextAddr++

	var protocol, subclass uint8
	if len(desc.Configs) > 0 {
		for _, c := range desc.Configs {
			for _, i := range c.Interfaces {
				for _, alt := range i.AltSettings {
					if alt.Class == gousb.ClassHID {
						protocol = uint8(alt.Protocol)
						subclass = uint8(alt.SubClass)
					}
				}
			}
		}
	}

	cd := &claimedDevice{devAddr: devAddr, dev: dev, cfg: cfg, iface: intf, epIn: epIn, epOut: epOut, stop: make(chan struct{})}
	mount := usbhost.MountEvent{
		DevAddr:  devAddr,
		Instance: 0,
		VID:      uint16(desc.Vendor),
		PID:      uint16(desc.Product),
		Protocol: protocol,
		SubClass: subclass,
	}
	return cd, mount, nil
}

func (a *Adapter) poll(ctx context.Context, cd *claimedDevice, reports chan<- usbhost.Event, unmounts chan<- usbhost.UnmountEvent) {
	buf := make([]byte, cd.epIn.Desc.MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cd.stop:
			return
		default:
		}

		n, err := cd.epIn.Read(buf)
		if err != nil {
			a.mu.Lock()
			uid := busUID(cd.dev.Desc.Bus, cd.dev.Desc.Address)
			if _, ok := a.claimed[uid]; ok {
				a.release(uid, cd)
				a.mu.Unlock()
				unmounts <- usbhost.UnmountEvent{DevAddr: cd.devAddr}
			} else {
				a.mu.Unlock()
			}
			return
		}
		report := make([]byte, n)
		copy(report, buf[:n])
		reports <- usbhost.Event{
			DevAddr:  cd.devAddr,
			Instance: 0,
			VID:      uint16(cd.dev.Desc.Vendor),
			PID:      uint16(cd.dev.Desc.Product),
			Report:   report,
		}
	}
}

// SetOutput writes report to the device's interrupt/bulk-OUT endpoint.
// isFeature is ignored: feature reports are written to epOut like any
// other output report.
func (a *Adapter) SetOutput(devAddr uint8, instance int8, report []byte, isFeature bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cd := range a.claimed {
		if cd.devAddr != devAddr {
			continue
		}
		if cd.epOut == nil {
			return fmt.Errorf("device %d has no output endpoint", devAddr)
		}
		_, err := cd.epOut.Write(report)
		return err
	}
	return fmt.Errorf("device %d not claimed", devAddr)
}

// Close releases every claimed device and the underlying USB context.
func (a *Adapter) Close() error {
	a.closeAll()
	return a.ctx.Close()
}

func (a *Adapter) closeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for uid, cd := range a.claimed {
		a.release(uid, cd)
	}
}

// release tears a claimed device down. Caller must hold a.mu.
func (a *Adapter) release(uid string, cd *claimedDevice) {
	close(cd.stop)
	cd.iface.Close()
	cd.cfg.Close()
	cd.dev.Close()
	delete(a.claimed, uid)
}

func busUID(bus, addr int) string {
	return fmt.Sprintf("%d-%d", bus, addr)
}

var _ usbhost.Adapter = (*Adapter)(nil)
