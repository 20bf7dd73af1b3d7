// Package profile holds the small, in-memory per-build tuning record the
// GameCube stage reads (left-stick scale, adaptive-trigger threshold) behind
// a Store interface, so a flash-backed implementation can replace the
// in-memory one later without touching console/gamecube.
package profile

import "github.com/usbretro/usbretro/console/gamecube"

// Record is the persisted shape of a profile: a name plus the tuning values
// console/gamecube.Profile already carries.
type Record struct {
	Name             string
	LeftStickScale   float64
	TriggerThreshold uint8
}

// ToGameCubeProfile converts a Record into the gamecube package's own
// Profile type.
func (r Record) ToGameCubeProfile() gamecube.Profile {
	return gamecube.Profile{
		LeftStickScale:   r.LeftStickScale,
		TriggerThreshold: r.TriggerThreshold,
	}
}

// Default matches gamecube.DefaultProfile's stated values.
var Default = Record{
	Name:             "default",
	LeftStickScale:   gamecube.DefaultProfile.LeftStickScale,
	TriggerThreshold: gamecube.DefaultProfile.TriggerThreshold,
}

// Store loads and saves profile records by name. No implementation is
// provided here: persisted state is out of scope, this interface only
// exists so a flash-backed Store can be slotted in without changing any
// caller.
type Store interface {
	Load(name string) (Record, error)
	Save(name string, r Record) error
	Names() ([]string, error)
}

// Memory is a Store backed by a process-local map, useful for tests and as
// the default when no persistent Store is configured.
type Memory struct {
	records map[string]Record
}

// NewMemory returns a Memory store seeded with Default under "default".
func NewMemory() *Memory {
	return &Memory{records: map[string]Record{Default.Name: Default}}
}

func (m *Memory) Load(name string) (Record, error) {
	if r, ok := m.records[name]; ok {
		return r, nil
	}
	return Record{}, ErrNotFound{Name: name}
}

func (m *Memory) Save(name string, r Record) error {
	if m.records == nil {
		m.records = map[string]Record{}
	}
	m.records[name] = r
	return nil
}

func (m *Memory) Names() ([]string, error) {
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	return names, nil
}

// ErrNotFound is returned by Store.Load when the named profile doesn't exist.
type ErrNotFound struct{ Name string }

func (e ErrNotFound) Error() string {
	return "profile: no such profile " + e.Name
}

var _ Store = (*Memory)(nil)
