// Package pci provides configuration space access to the host bridge and
// RAM controller functions the chrome driver inspects.
package pci

import (
	"errors"
	"fmt"
	"strings"
)

// Standard header offsets.
const (
	ConfigVendorID = 0x00
	ConfigDeviceID = 0x02
	ConfigRevision = 0x08
	ConfigClass    = 0x0A
	ConfigBAR0     = 0x10

	ConfigSize = 256
)

var (
	ErrNoDevice   = errors.New("no such pci function")
	ErrBadAccess  = errors.New("invalid config access")
	ErrInvalidBDF = errors.New("invalid pci address")
)

// ConfigSpace models PCI configuration space access for a single bus/device/function tuple.
type ConfigSpace interface {
	ReadConfig(offset uint16, size uint8) (uint32, error)
	WriteConfig(offset uint16, size uint8, value uint32) error
}

// Bus locates functions by address or identity.
type Bus interface {
	Function(loc Location) (ConfigSpace, error)
	// Find returns the first function matching vendor and device.
	Find(vendor, device uint16) (Location, error)
}

// Location is a PCI domain:bus:device.function address.
type Location struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

// Slot returns the bus 0 location of device dev, function fn.
func Slot(dev, fn uint8) Location {
	return Location{Device: dev, Function: fn}
}

// ParseLocation parses "DDDD:BB:DD.F" or "BB:DD.F".
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	var loc Location

	n, err := fmt.Sscanf(s, "%x:%x:%x.%x", &loc.Domain, &loc.Bus, &loc.Device, &loc.Function)
	if err == nil && n == 4 {
		return loc, loc.check(s)
	}

	loc = Location{}
	n, err = fmt.Sscanf(s, "%x:%x.%x", &loc.Bus, &loc.Device, &loc.Function)
	if err == nil && n == 3 {
		return loc, loc.check(s)
	}

	return Location{}, fmt.Errorf("%w %q: expected DDDD:BB:DD.F or BB:DD.F", ErrInvalidBDF, s)
}

func (l Location) check(s string) error {
	if l.Device > 0x1F || l.Function > 0x7 {
		return fmt.Errorf("%w %q: device or function out of range", ErrInvalidBDF, s)
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", l.Domain, l.Bus, l.Device, l.Function)
}

// Read8 reads one config byte.
func Read8(cs ConfigSpace, offset uint16) (uint8, error) {
	v, err := cs.ReadConfig(offset, 1)
	return uint8(v), err
}

// Read16 reads one config word.
func Read16(cs ConfigSpace, offset uint16) (uint16, error) {
	v, err := cs.ReadConfig(offset, 2)
	return uint16(v), err
}

// Read32 reads one config dword.
func Read32(cs ConfigSpace, offset uint16) (uint32, error) {
	return cs.ReadConfig(offset, 4)
}

// Identity returns the vendor and device ID of cs.
func Identity(cs ConfigSpace) (vendor, device uint16, err error) {
	v, err := Read32(cs, ConfigVendorID)
	if err != nil {
		return 0, 0, err
	}
	return uint16(v), uint16(v >> 16), nil
}

// MemoryBAR returns the base address programmed into memory BAR index.
func MemoryBAR(cs ConfigSpace, index int) (uint64, error) {
	if index < 0 || index > 5 {
		return 0, fmt.Errorf("%w: BAR index %d", ErrBadAccess, index)
	}
	v, err := Read32(cs, ConfigBAR0+uint16(index)*4)
	if err != nil {
		return 0, err
	}
	if v&0x1 != 0 {
		return 0, fmt.Errorf("%w: BAR%d is an I/O BAR", ErrBadAccess, index)
	}
	base := uint64(v &^ 0xF)
	if (v>>1)&0x3 == 0x2 {
		hi, err := Read32(cs, ConfigBAR0+uint16(index+1)*4)
		if err != nil {
			return 0, err
		}
		base |= uint64(hi) << 32
	}
	return base, nil
}

func checkAccess(offset uint16, size uint8) error {
	switch size {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: size %d", ErrBadAccess, size)
	}
	if uint16(size) > ConfigSize || offset > ConfigSize-uint16(size) {
		return fmt.Errorf("%w: offset %#x size %d", ErrBadAccess, offset, size)
	}
	if offset%uint16(size) != 0 {
		return fmt.Errorf("%w: unaligned offset %#x size %d", ErrBadAccess, offset, size)
	}
	return nil
}
