// Package vgasim simulates the VGA register window of a UniChrome IGP and
// the VIA chipsets it sits on, closely enough to exercise the driver core
// without hardware.
package vgasim

import (
	"sync"

	"github.com/tinyrange/chromefb/internal/vgaio"
)

// Bank identifies one of the indexed register groups.
type Bank int

const (
	BankCR Bank = iota
	BankSeq
	BankGraph
	BankAttr
)

func (b Bank) String() string {
	switch b {
	case BankCR:
		return "CR"
	case BankSeq:
		return "SR"
	case BankGraph:
		return "GR"
	case BankAttr:
		return "AR"
	default:
		return "??"
	}
}

// Access is one recorded aperture cycle.
type Access struct {
	Write  bool
	Offset uint32
	Value  uint8
}

// State is a copy of every register the simulation holds.
type State struct {
	CR      [256]uint8
	Seq     [256]uint8
	Graph   [256]uint8
	Attr    [32]uint8
	Misc    uint8
	Enable  uint8
	DACMask uint8
	Palette [256 * 3]uint8
}

// Chip implements vgaio.Aperture on top of a register file.
type Chip struct {
	mu sync.Mutex

	state State

	crIndex    uint8
	seqIndex   uint8
	graphIndex uint8
	attrIndex  uint8
	attrData   bool // flip-flop: next 0x3C0 write is data

	dacReadIndex  uint8
	dacReadPhase  uint8
	dacWriteIndex uint8
	dacWritePhase uint8
	dacReading    bool

	status1 uint8

	trace   bool
	history []Access

	vram []byte
}

// NewChip returns a chip in VGA text mode with vramSize bytes of video memory.
func NewChip(vramSize int) *Chip {
	c := &Chip{
		vram: make([]byte, vramSize),
	}
	c.state.DACMask = 0xFF
	c.state.Misc = 0x67
	c.state.Enable = 0x01
	c.state.Seq[0x00] = 0x03
	c.state.Seq[0x01] = 0x00
	c.state.Seq[0x02] = 0x03
	c.state.Seq[0x04] = 0x02
	c.state.Graph[0x05] = 0x10
	c.state.Graph[0x06] = 0x0E
	c.state.Graph[0x08] = 0xFF
	c.state.Attr[0x10] = 0x0C
	c.state.Attr[0x12] = 0x0F
	for i := 0; i < 16; i++ {
		c.state.Attr[i] = uint8(i)
	}
	c.attrIndex = 0x20
	return c
}

// Read8 implements vgaio.Aperture.
func (c *Chip) Read8(offset uint32) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.read(offset)
	if c.trace {
		c.history = append(c.history, Access{Offset: offset, Value: v})
	}
	return v
}

// Write8 implements vgaio.Aperture.
func (c *Chip) Write8(offset uint32, value uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trace {
		c.history = append(c.history, Access{Write: true, Offset: offset, Value: value})
	}
	c.write(offset, value)
}

func (c *Chip) read(offset uint32) uint8 {
	if offset < vgaio.WindowBase {
		return 0xFF
	}
	switch offset - vgaio.WindowBase {
	case vgaio.PortAttrIndex:
		return c.attrIndex
	case vgaio.PortAttrData:
		return c.state.Attr[c.attrIndex&0x1F]
	case vgaio.PortMiscWrite:
		return 0x10 // input status 0: switch sense
	case vgaio.PortEnable:
		return c.state.Enable
	case vgaio.PortSeqIndex:
		return c.seqIndex
	case vgaio.PortSeqData:
		return c.state.Seq[c.seqIndex]
	case vgaio.PortDACMask:
		return c.state.DACMask
	case vgaio.PortDACReadAddr:
		if c.dacReading {
			return 0x03
		}
		return 0x00
	case vgaio.PortDACWriteAddr:
		return c.dacWriteIndex
	case vgaio.PortDACData:
		return c.readDAC()
	case vgaio.PortMiscRead:
		return c.state.Misc
	case vgaio.PortGraphIndex:
		return c.graphIndex
	case vgaio.PortGraphData:
		return c.state.Graph[c.graphIndex]
	case vgaio.PortCRIndex:
		return c.crIndex
	case vgaio.PortCRData:
		return c.state.CR[c.crIndex]
	case vgaio.PortStatus1:
		c.attrData = false
		// display enable and vertical retrace toggle on every poll
		c.status1 ^= 0x09
		return c.status1
	default:
		return 0xFF
	}
}

func (c *Chip) write(offset uint32, value uint8) {
	if offset < vgaio.WindowBase {
		return
	}
	switch offset - vgaio.WindowBase {
	case vgaio.PortAttrIndex:
		if c.attrData {
			c.state.Attr[c.attrIndex&0x1F] = value
		} else {
			c.attrIndex = value
		}
		c.attrData = !c.attrData
	case vgaio.PortMiscWrite:
		c.state.Misc = value
	case vgaio.PortEnable:
		c.state.Enable = value
	case vgaio.PortSeqIndex:
		c.seqIndex = value
	case vgaio.PortSeqData:
		c.state.Seq[c.seqIndex] = value
	case vgaio.PortDACMask:
		c.state.DACMask = value
	case vgaio.PortDACReadAddr:
		c.dacReadIndex = value
		c.dacReadPhase = 0
		c.dacReading = true
	case vgaio.PortDACWriteAddr:
		c.dacWriteIndex = value
		c.dacWritePhase = 0
		c.dacReading = false
	case vgaio.PortDACData:
		c.writeDAC(value)
	case vgaio.PortGraphIndex:
		c.graphIndex = value
	case vgaio.PortGraphData:
		c.state.Graph[c.graphIndex] = value
	case vgaio.PortCRIndex:
		c.crIndex = value
	case vgaio.PortCRData:
		c.state.CR[c.crIndex] = value
	}
}

func (c *Chip) readDAC() uint8 {
	v := c.state.Palette[int(c.dacReadIndex)*3+int(c.dacReadPhase)]
	c.dacReadPhase++
	if c.dacReadPhase == 3 {
		c.dacReadPhase = 0
		c.dacReadIndex++
	}
	return v
}

func (c *Chip) writeDAC(value uint8) {
	c.state.Palette[int(c.dacWriteIndex)*3+int(c.dacWritePhase)] = value
	c.dacWritePhase++
	if c.dacWritePhase == 3 {
		c.dacWritePhase = 0
		c.dacWriteIndex++
	}
}

// State returns a copy of the register file.
func (c *Chip) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load replaces the register file, bypassing the port protocol.
func (c *Chip) Load(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Reg returns one indexed register without touching the index latches.
func (c *Chip) Reg(bank Bank, index uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch bank {
	case BankCR:
		return c.state.CR[index]
	case BankSeq:
		return c.state.Seq[index]
	case BankGraph:
		return c.state.Graph[index]
	case BankAttr:
		return c.state.Attr[index&0x1F]
	default:
		return 0
	}
}

// SetReg stores one indexed register without touching the index latches.
func (c *Chip) SetReg(bank Bank, index, value uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch bank {
	case BankCR:
		c.state.CR[index] = value
	case BankSeq:
		c.state.Seq[index] = value
	case BankGraph:
		c.state.Graph[index] = value
	case BankAttr:
		c.state.Attr[index&0x1F] = value
	}
}

// AttrIndex reports the attribute index latch and whether the flip-flop is
// waiting for a data byte.
func (c *Chip) AttrIndex() (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrIndex, c.attrData
}

// Trace starts recording aperture cycles, discarding earlier history.
func (c *Chip) Trace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = true
	c.history = c.history[:0]
}

// History returns the cycles recorded since Trace.
func (c *Chip) History() []Access {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Access, len(c.history))
	copy(out, c.history)
	return out
}

// Writes counts recorded write cycles.
func (c *Chip) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.history {
		if a.Write {
			n++
		}
	}
	return n
}

// VRAM exposes video memory as the driver sees it through the framebuffer BAR.
func (c *Chip) VRAM() []byte {
	return c.vram
}

var _ vgaio.Aperture = (*Chip)(nil)
