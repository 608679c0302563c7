package chrome

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/chromefb/internal/pci"
)

// HostBridge is the PCI device ID of a supported VIA north bridge.
type HostBridge uint16

const (
	HostCLE266 HostBridge = 0x3123
	HostKM400  HostBridge = 0x3205
	HostP4M800 HostBridge = 0x0296
	HostK8M800 HostBridge = 0x0204
)

func (h HostBridge) String() string {
	switch h {
	case HostCLE266:
		return "CLE266"
	case HostKM400:
		return "KM400/KN400"
	case HostP4M800:
		return "P4M800"
	case HostK8M800:
		return "K8M800/K8N800"
	default:
		return fmt.Sprintf("HostBridge(0x%04X)", uint16(h))
	}
}

// RAMClass is the speed grade of the system memory the framebuffer lives in.
type RAMClass int

const (
	RAMUnknown RAMClass = iota
	RAMDDR200
	RAMDDR266
	RAMDDR333
	RAMDDR400
)

func (r RAMClass) String() string {
	switch r {
	case RAMDDR200:
		return "100MHz DDR - PC1600"
	case RAMDDR266:
		return "133MHz DDR - PC2100"
	case RAMDDR333:
		return "166MHz DDR - PC2700"
	case RAMDDR400:
		return "200MHz DDR - PC3200"
	default:
		return "Unknown"
	}
}

// PlatformInfo is what the host bridge says about the framebuffer.
type PlatformInfo struct {
	Host            HostBridge
	Revision        uint8
	RAM             RAMClass
	FramebufferSize uint64 // bytes
	FramebufferBase uint64 // physical
	Direct          bool   // CPU reaches the framebuffer without the IGP
}

var (
	hostLocation    = pci.Slot(0, 0)
	ramCtrlLocation = pci.Slot(0, 3)
	scratchLocation = pci.Slot(0, 4)
)

const (
	vendorAMD    = 0x1022
	deviceK8DRAM = 0x1102
)

// Discover identifies the host bridge and reads framebuffer size, RAM class
// and framebuffer base from it. self is the IGP; its BAR0 is the base when
// the bridge has no direct access window. With enableDirect set, a disabled
// window on bridges that have one is opened onto BAR0.
func Discover(bus pci.Bus, self pci.Location, enableDirect bool, log *slog.Logger) (PlatformInfo, error) {
	if log == nil {
		log = slog.Default()
	}
	var info PlatformInfo

	host, err := bus.Function(hostLocation)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrUnknownHostBridge, err)
	}
	vendor, device, err := pci.Identity(host)
	if err != nil {
		return info, err
	}
	if vendor != VendorVIA {
		return info, fmt.Errorf("%w: not a VIA host bridge: 0x%04X:0x%04X", ErrUnknownHostBridge, vendor, device)
	}
	info.Host = HostBridge(device)
	switch info.Host {
	case HostCLE266, HostKM400, HostP4M800, HostK8M800:
	default:
		return info, fmt.Errorf("%w: 0x%04X:0x%04X", ErrUnknownHostBridge, vendor, device)
	}

	if info.Revision, err = pci.Read8(host, 0xF6); err != nil {
		return info, err
	}

	// framebuffer reservation lives on the host function itself for the
	// older bridges, on the RAM controller function otherwise
	ram := host
	window := uint16(0xE0)
	if info.Host == HostP4M800 || info.Host == HostK8M800 {
		if ram, err = bus.Function(ramCtrlLocation); err != nil {
			return info, fmt.Errorf("%w: %w", ErrRAMControllerNotFound, err)
		}
		window = 0xA0
	}

	fbField, err := pci.Read8(ram, window+1)
	if err != nil {
		return info, err
	}
	field := (fbField & 0x70) >> 4
	if field == 0 {
		return info, ErrZeroFramebufferSize
	}
	info.FramebufferSize = uint64(1) << (20 + field)

	switch info.Host {
	case HostCLE266:
		info.RAM, err = cle266RAM(ram)
	case HostKM400:
		info.RAM, err = km400RAM(ram, info.Revision)
	case HostP4M800:
		info.RAM, err = p4m800RAM(bus, ram)
	case HostK8M800:
		info.RAM, err = k8m800RAM(bus)
	}
	if err != nil {
		return info, err
	}
	if info.RAM == RAMUnknown {
		log.Warn("unable to classify RAM", "host", info.Host, "rev", fmt.Sprintf("0x%02X", info.Revision))
	}

	igp, err := bus.Function(self)
	if err != nil {
		return info, err
	}
	if info.FramebufferBase, err = pci.MemoryBAR(igp, 0); err != nil {
		return info, err
	}

	if info.Host == HostK8M800 {
		// the framebuffer is carved from the top of CPU memory
		top, err := pci.Read8(ram, 0x47)
		if err != nil {
			return info, err
		}
		end := uint64(top) << 24
		if end < info.FramebufferSize {
			return info, fmt.Errorf("%w: system memory %dMiB below framebuffer size", ErrZeroFramebufferSize, end>>20)
		}
		info.FramebufferBase = end - info.FramebufferSize
		info.Direct = true
	} else {
		base, ok, err := directWindow(ram, window)
		if err != nil {
			return info, err
		}
		if !ok && enableDirect && (info.Host == HostCLE266 || info.Host == HostKM400) {
			if err := EnableDirectAccess(ram, info.FramebufferBase); err != nil {
				return info, err
			}
			if base, ok, err = directWindow(ram, window); err != nil {
				return info, err
			}
		}
		if ok {
			info.FramebufferBase = base
			info.Direct = true
		}
	}

	log.Info("found host bridge",
		"host", info.Host,
		"rev", fmt.Sprintf("0x%02X", info.Revision),
		"fb_kib", info.FramebufferSize>>10,
		"ram", info.RAM,
		"fb_base", fmt.Sprintf("0x%08X", info.FramebufferBase),
		"direct", info.Direct)

	return info, nil
}

// directWindow decodes the direct access window word at offset.
func directWindow(ram pci.ConfigSpace, offset uint16) (uint64, bool, error) {
	v, err := pci.Read16(ram, offset)
	if err != nil {
		return 0, false, err
	}
	if v&0x0001 == 0 || v&0x0FFE == 0 {
		return 0, false, nil
	}
	return uint64(v&0x0FFE) << 20, true, nil
}

// EnableDirectAccess points the CLE266/KM400 direct access window at base
// and enables it.
func EnableDirectAccess(ram pci.ConfigSpace, base uint64) error {
	v, err := pci.Read32(ram, 0xE0)
	if err != nil {
		return err
	}
	v &= 0xFFFFF001
	v |= uint32(base>>20) & 0xFFE
	v |= 0x01
	return ram.WriteConfig(0xE0, 4, v)
}

func cle266RAM(host pci.ConfigSpace) (RAMClass, error) {
	strap, err := readBytes(host, 0x54, 0x69, 0x60, 0xE3)
	if err != nil {
		return RAMUnknown, err
	}

	var freq int
	switch strap[0] >> 6 {
	case 0x01:
		freq = 3 // 100MHz
	case 0x02, 0x03:
		freq = 4 // 133MHz
	default:
		return RAMUnknown, nil
	}

	switch dram := strap[1] >> 6; {
	case dram&0x02 != 0:
		freq--
	case dram&0x01 != 0:
		freq++
	}

	ddr := strap[2]
	if strap[3]&0x02 != 0 { // framebuffer on banks 2/3
		ddr >>= 2
	}
	if ddr&0x03 != 0x02 {
		return RAMUnknown, nil
	}

	switch freq {
	case 3:
		return RAMDDR200, nil
	case 4:
		return RAMDDR266, nil
	default:
		return RAMUnknown, nil
	}
}

// km400Table is indexed by FSB strap, then FSB to DRAM ratio.
var km400Table = map[uint8]map[uint8]RAMClass{
	0: {0: RAMDDR200, 1: RAMDDR266, 2: RAMDDR400, 3: RAMDDR333},
	1: {0: RAMDDR266, 1: RAMDDR333, 2: RAMDDR400},
	2: {0: RAMDDR333, 2: RAMDDR400, 3: RAMDDR266},
	3: {0: RAMDDR333, 2: RAMDDR400, 3: RAMDDR266},
}

// km400aTable carries an extra ratio bit from 0x67.
var km400aTable = map[uint8]map[uint8]RAMClass{
	0: {0: RAMDDR200, 1: RAMDDR266, 3: RAMDDR333, 7: RAMDDR400},
	1: {0: RAMDDR266, 1: RAMDDR333, 3: RAMDDR400},
	2: {0: RAMDDR400, 4: RAMDDR333, 6: RAMDDR266},
	3: {0: RAMDDR333, 1: RAMDDR400, 4: RAMDDR266},
}

func km400RAM(host pci.ConfigSpace, rev uint8) (RAMClass, error) {
	strap, err := readBytes(host, 0x54, 0x69, 0x67)
	if err != nil {
		return RAMUnknown, err
	}
	fsb := strap[0] >> 6
	ratio := strap[1] >> 6

	table := km400Table
	if rev >= 0x80 {
		table = km400aTable
		if strap[2]&0x80 != 0 {
			ratio |= 0x04
		}
	}
	return table[fsb][ratio], nil
}

func p4m800RAM(bus pci.Bus, ram pci.ConfigSpace) (RAMClass, error) {
	scratch, err := bus.Function(scratchLocation)
	if err != nil {
		return RAMUnknown, fmt.Errorf("%w: %w", ErrRAMControllerNotFound, err)
	}
	fsb, err := pci.Read8(scratch, 0xF3)
	if err != nil {
		return RAMUnknown, err
	}

	var freq int
	switch fsb >> 5 {
	case 0:
		freq = 3 // 100MHz
	case 1:
		freq = 4 // 133MHz
	case 3:
		freq = 5 // 166MHz
	case 2:
		freq = 6 // 200MHz
	case 4:
		freq = 7 // 233MHz
	default:
		return RAMUnknown, nil
	}

	ratio, err := pci.Read8(ram, 0x68)
	if err != nil {
		return RAMUnknown, err
	}
	ratio &= 0x0F
	if ratio&0x02 != 0 {
		freq -= int(ratio >> 2)
	} else {
		freq += int(ratio >> 2)
		if ratio&0x01 != 0 {
			freq++
		}
	}

	switch freq {
	case 3:
		return RAMDDR200, nil
	case 4:
		return RAMDDR266, nil
	case 5:
		return RAMDDR333, nil
	case 6:
		return RAMDDR400, nil
	default:
		return RAMUnknown, nil
	}
}

// k8m800RAM asks the Athlon64 DRAM controller.
func k8m800RAM(bus pci.Bus) (RAMClass, error) {
	loc, err := bus.Find(vendorAMD, deviceK8DRAM)
	if err != nil {
		return RAMUnknown, fmt.Errorf("%w: %w", ErrRAMControllerNotFound, err)
	}
	dram, err := bus.Function(loc)
	if err != nil {
		return RAMUnknown, fmt.Errorf("%w: %w", ErrRAMControllerNotFound, err)
	}
	v, err := pci.Read8(dram, 0x96)
	if err != nil {
		return RAMUnknown, err
	}
	switch (v >> 4) & 0x07 {
	case 0x00:
		return RAMDDR200, nil
	case 0x02:
		return RAMDDR266, nil
	case 0x05:
		return RAMDDR333, nil
	case 0x07:
		return RAMDDR400, nil
	default:
		return RAMUnknown, nil
	}
}

func readBytes(cs pci.ConfigSpace, offsets ...uint16) ([]uint8, error) {
	out := make([]uint8, len(offsets))
	for i, off := range offsets {
		v, err := pci.Read8(cs, off)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
