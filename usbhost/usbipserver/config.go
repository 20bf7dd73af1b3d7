package usbipserver

import "time"

// Config is the usbip server's listen/timeout tuning, usable standalone
// or embedded into internal/cmd for a future "serve a real device pool
// over the network" build.
type Config struct {
	Addr                    string        `help:"usbip server listen address" default:":3241"`
	ConnectionTimeout       time.Duration `kong:"-"`
	BusCleanupTimeout       time.Duration `kong:"-"`
	WriteBatchFlushInterval time.Duration `help:"Interval to flush write batches to clients; 0 to disable" default:"1ms"`
}
