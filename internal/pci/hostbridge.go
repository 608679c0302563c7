package pci

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// HostBridge is an in-memory PCI bus: every populated function owns a 256 byte
// configuration space, optionally with read-only ranges. It backs simulated
// platforms and tests.
type HostBridge struct {
	mu       sync.Mutex
	order    []Location
	config   map[Location][]byte
	readOnly map[Location]map[uint16]struct{}
}

// NewHostBridge returns an empty bus.
func NewHostBridge() *HostBridge {
	return &HostBridge{
		config:   make(map[Location][]byte),
		readOnly: make(map[Location]map[uint16]struct{}),
	}
}

// AddDevice populates loc with a header carrying vendor, device, revision and
// class. The identity bytes are read-only.
func (hb *HostBridge) AddDevice(loc Location, vendor, device uint16, revision uint8, class uint16) {
	cfg := make([]byte, ConfigSize)
	binary.LittleEndian.PutUint16(cfg[ConfigVendorID:], vendor)
	binary.LittleEndian.PutUint16(cfg[ConfigDeviceID:], device)
	cfg[ConfigRevision] = revision
	binary.LittleEndian.PutUint16(cfg[ConfigClass:], class)

	hb.mu.Lock()
	defer hb.mu.Unlock()
	if _, ok := hb.config[loc]; !ok {
		hb.order = append(hb.order, loc)
	}
	hb.config[loc] = cfg
	hb.setReadOnlyRangeLocked(loc, 0x00, 0x03)
	hb.setReadOnlyRangeLocked(loc, 0x08, 0x0B)
}

// SetReadOnlyRange makes the bytes in [start, end] of loc ignore writes.
func (hb *HostBridge) SetReadOnlyRange(loc Location, start, end uint16) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	hb.setReadOnlyRangeLocked(loc, start, end)
}

func (hb *HostBridge) setReadOnlyRangeLocked(loc Location, start, end uint16) {
	if hb.readOnly[loc] == nil {
		hb.readOnly[loc] = make(map[uint16]struct{})
	}
	for offset := start; offset <= end; offset++ {
		hb.readOnly[loc][offset] = struct{}{}
	}
}

// Poke stores value at offset regardless of read-only ranges. Firmware uses it
// to preload straps.
func (hb *HostBridge) Poke(loc Location, offset uint16, size uint8, value uint32) error {
	if err := checkAccess(offset, size); err != nil {
		return err
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	cfg, ok := hb.config[loc]
	if !ok {
		return fmt.Errorf("%w at %s", ErrNoDevice, loc)
	}
	for i := uint8(0); i < size; i++ {
		cfg[offset+uint16(i)] = byte(value >> (8 * i))
	}
	return nil
}

// Function implements Bus.
func (hb *HostBridge) Function(loc Location) (ConfigSpace, error) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	if _, ok := hb.config[loc]; !ok {
		return nil, fmt.Errorf("%w at %s", ErrNoDevice, loc)
	}
	return &bridgeFunction{hb: hb, loc: loc}, nil
}

// Find implements Bus. Functions are searched in the order they were added.
func (hb *HostBridge) Find(vendor, device uint16) (Location, error) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	for _, loc := range hb.order {
		cfg := hb.config[loc]
		if binary.LittleEndian.Uint16(cfg[ConfigVendorID:]) == vendor &&
			binary.LittleEndian.Uint16(cfg[ConfigDeviceID:]) == device {
			return loc, nil
		}
	}
	return Location{}, fmt.Errorf("%w %04x:%04x", ErrNoDevice, vendor, device)
}

func (hb *HostBridge) readConfig(loc Location, offset uint16, size uint8) (uint32, error) {
	if err := checkAccess(offset, size); err != nil {
		return 0, err
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	cfg, ok := hb.config[loc]
	if !ok {
		return 0xFFFF_FFFF, fmt.Errorf("%w at %s", ErrNoDevice, loc)
	}
	value := uint32(0)
	for i := uint8(0); i < size; i++ {
		value |= uint32(cfg[offset+uint16(i)]) << (8 * i)
	}
	return value, nil
}

func (hb *HostBridge) writeConfig(loc Location, offset uint16, size uint8, value uint32) error {
	if err := checkAccess(offset, size); err != nil {
		return err
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	cfg, ok := hb.config[loc]
	if !ok {
		return fmt.Errorf("%w at %s", ErrNoDevice, loc)
	}
	for i := uint8(0); i < size; i++ {
		reg := offset + uint16(i)
		if _, ro := hb.readOnly[loc][reg]; ro {
			continue
		}
		cfg[reg] = byte(value >> (8 * i))
	}
	return nil
}

type bridgeFunction struct {
	hb  *HostBridge
	loc Location
}

func (f *bridgeFunction) ReadConfig(offset uint16, size uint8) (uint32, error) {
	return f.hb.readConfig(f.loc, offset, size)
}

func (f *bridgeFunction) WriteConfig(offset uint16, size uint8, value uint32) error {
	return f.hb.writeConfig(f.loc, offset, size, value)
}

var (
	_ Bus         = (*HostBridge)(nil)
	_ ConfigSpace = (*bridgeFunction)(nil)
)
