package vgasim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tinyrange/chromefb/internal/pci"
)

// ErrUnknownPlatform is returned by NewPlatform for unknown preset names.
var ErrUnknownPlatform = errors.New("unknown simulated platform")

// Addresses shared by every preset.
var (
	HostLocation    = pci.Slot(0, 0)
	RAMCtrlLocation = pci.Slot(0, 3)
	ScratchLocation = pci.Slot(0, 4)
	K8DRAMLocation  = pci.Slot(0x18, 2)
	IGPLocation     = pci.Location{Bus: 1}
)

const (
	vendorVIA = 0x1106
	vendorAMD = 0x1022

	classHostBridge = 0x0600
	classVGA        = 0x0300

	// DefaultFramebufferBAR and DefaultMMIOBAR are the resource bases every
	// simulated IGP advertises.
	DefaultFramebufferBAR = 0xD0000000
	DefaultMMIOBAR        = 0xDD000000

	// simulated video memory only needs to cover the legacy planes and
	// the start of the visible screen
	vramSize = 1 << 20
)

// Platform is a simulated VIA system: a PCI bus carrying the host bridge
// functions and the IGP, and the IGP's register window.
type Platform struct {
	Name string
	Bus  *pci.HostBridge
	IGP  pci.Location
	Chip *Chip
}

type preset struct {
	describe string
	build    func(p *Platform) error
}

var presets = map[string]preset{
	"cle266": {"VT3122 on CLE266, DDR266, 16MiB, direct access off", buildCLE266},
	"km400":  {"VT7205 on KM400, DDR333, 32MiB, direct access on", buildKM400},
	"km400a": {"VT7205 on KM400A, DDR266, 64MiB, direct access off", buildKM400A},
	"p4m800": {"VT7205 on P4M800, DDR333, 16MiB, direct access off", buildP4M800},
	"k8m800": {"VT3108 on K8M800, DDR400, 32MiB, CPU side framebuffer", buildK8M800},
}

// Presets lists the available platform names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one line summary of a preset.
func Describe(name string) string {
	return presets[name].describe
}

// NewPlatform builds the named preset.
func NewPlatform(name string) (*Platform, error) {
	ps, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPlatform, name)
	}
	p := &Platform{
		Name: name,
		Bus:  pci.NewHostBridge(),
		IGP:  IGPLocation,
		Chip: NewChip(vramSize),
	}
	if err := ps.build(p); err != nil {
		return nil, fmt.Errorf("build platform %s: %w", name, err)
	}
	return p, nil
}

// poker collects the first error of a run of Poke calls.
type poker struct {
	bus *pci.HostBridge
	err error
}

func (pk *poker) set(loc pci.Location, offset uint16, size uint8, value uint32) {
	if pk.err != nil {
		return
	}
	pk.err = pk.bus.Poke(loc, offset, size, value)
}

func (p *Platform) addHost(device uint16, revision uint8) *poker {
	p.Bus.AddDevice(HostLocation, vendorVIA, device, 0, classHostBridge)
	pk := &poker{bus: p.Bus}
	pk.set(HostLocation, 0xF6, 1, uint32(revision))
	return pk
}

func (p *Platform) addIGP(pk *poker, device uint16) {
	p.Bus.AddDevice(p.IGP, vendorVIA, device, 0, classVGA)
	pk.set(p.IGP, pci.ConfigBAR0, 4, DefaultFramebufferBAR|0x08)
	pk.set(p.IGP, pci.ConfigBAR0+4, 4, DefaultMMIOBAR)
}

// CLE266: straps on 0:0.0, FSB 133MHz with DRAM at FSB, DDR on banks 0/1.
func buildCLE266(p *Platform) error {
	pk := p.addHost(0x3123, 0x02)
	pk.set(HostLocation, 0x54, 1, 0x80)
	pk.set(HostLocation, 0x69, 1, 0x00)
	pk.set(HostLocation, 0x60, 1, 0x02)
	pk.set(HostLocation, 0xE3, 1, 0x00)
	pk.set(HostLocation, 0xE0, 2, 0x4000)
	p.addIGP(pk, 0x3122)
	return pk.err
}

// KM400 before revision 0x80: FSB 133MHz, DRAM ratio 1.
func buildKM400(p *Platform) error {
	pk := p.addHost(0x3205, 0x00)
	pk.set(HostLocation, 0x54, 1, 0x40)
	pk.set(HostLocation, 0x69, 1, 0x40)
	pk.set(HostLocation, 0xE0, 2, 0x5E01)
	p.addIGP(pk, 0x7205)
	return pk.err
}

// KM400A: FSB 200MHz, ratio 2 plus the extended bit from 0x67.
func buildKM400A(p *Platform) error {
	pk := p.addHost(0x3205, 0x80)
	pk.set(HostLocation, 0x54, 1, 0x80)
	pk.set(HostLocation, 0x69, 1, 0x80)
	pk.set(HostLocation, 0x67, 1, 0x80)
	pk.set(HostLocation, 0xE0, 2, 0x6000)
	p.addIGP(pk, 0x7205)
	return pk.err
}

// P4M800: FSB scratch on 0:4.0, RAM controller on 0:0.3.
func buildP4M800(p *Platform) error {
	pk := p.addHost(0x0296, 0x00)
	p.Bus.AddDevice(RAMCtrlLocation, vendorVIA, 0x3296, 0, classHostBridge)
	p.Bus.AddDevice(ScratchLocation, vendorVIA, 0x4296, 0, classHostBridge)
	pk.set(ScratchLocation, 0xF3, 1, 0x60)
	pk.set(RAMCtrlLocation, 0x68, 1, 0x00)
	pk.set(RAMCtrlLocation, 0xA0, 2, 0x4000)
	p.addIGP(pk, 0x7205)
	return pk.err
}

// K8M800: memory belongs to the Athlon64, classified through its DRAM
// controller. 256MiB of system RAM, framebuffer carved from the top.
func buildK8M800(p *Platform) error {
	pk := p.addHost(0x0204, 0x00)
	p.Bus.AddDevice(RAMCtrlLocation, vendorVIA, 0x3204, 0, classHostBridge)
	p.Bus.AddDevice(K8DRAMLocation, vendorAMD, 0x1102, 0, classHostBridge)
	pk.set(RAMCtrlLocation, 0xA0, 2, 0x5000)
	pk.set(RAMCtrlLocation, 0x47, 1, 0x10)
	pk.set(K8DRAMLocation, 0x96, 1, 0x70)
	p.addIGP(pk, 0x3108)
	return pk.err
}
