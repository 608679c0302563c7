// Package vgaio provides ordered byte access to the legacy VGA register
// window of a UniChrome MMIO aperture.
package vgaio

import "sync"

// The VGA register set is remapped into the MMIO aperture at WindowBase.
// Offsets below are the legacy port numbers relative to that base.
const (
	WindowBase = 0x8000

	PortAttrIndex    = 0x3C0 // write: index/data flip-flop, read: index
	PortAttrData     = 0x3C1 // read: data
	PortMiscWrite    = 0x3C2 // write: misc output, read: input status 0
	PortEnable       = 0x3C3
	PortSeqIndex     = 0x3C4
	PortSeqData      = 0x3C5
	PortDACMask      = 0x3C6
	PortDACReadAddr  = 0x3C7 // write: read address, read: DAC state
	PortDACWriteAddr = 0x3C8
	PortDACData      = 0x3C9
	PortMiscRead     = 0x3CC
	PortGraphIndex   = 0x3CE
	PortGraphData    = 0x3CF
	PortCRIndex      = 0x3D4
	PortCRData       = 0x3D5
	PortStatus1      = 0x3DA // read: input status 1, resets the attribute flip-flop

	// ApertureSize covers the VGA window and everything below it.
	ApertureSize = 0x9000
)

// attrPAS is the palette address source bit of the attribute index. While it
// is clear the attribute palette is open to the CPU and the display is blanked.
const attrPAS = 0x20

// Aperture is a byte addressable view of the control MMIO region. Accesses
// must reach the hardware in program order.
type Aperture interface {
	Read8(offset uint32) uint8
	Write8(offset uint32, value uint8)
}

// Regs serialises all register traffic on one aperture. Every index select is
// paired with its data access inside a single critical section.
type Regs struct {
	mu sync.Mutex
	tx Tx
}

// NewRegs wraps ap.
func NewRegs(ap Aperture) *Regs {
	return &Regs{tx: Tx{ap: ap}}
}

// Do runs fn with exclusive access to the register window. Longer sequences
// (state sweeps, mode programming) must run inside one Do so no other access
// can land between an index select and its data cycle.
func (r *Regs) Do(fn func(tx *Tx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.tx)
}

// Tx is the held register window handed out by Regs.Do. It is only valid for
// the duration of the callback.
type Tx struct {
	ap Aperture
}

func (tx *Tx) read(port uint32) uint8 {
	return tx.ap.Read8(WindowBase + port)
}

func (tx *Tx) write(port uint32, value uint8) {
	tx.ap.Write8(WindowBase+port, value)
}

func merge(old, value, mask uint8) uint8 {
	return old&^mask | value&mask
}

func (tx *Tx) indexedRead(index, data uint32, reg uint8) uint8 {
	tx.write(index, reg)
	return tx.read(data)
}

func (tx *Tx) indexedWrite(index, data uint32, reg, value uint8) {
	tx.write(index, reg)
	tx.write(data, value)
}

func (tx *Tx) indexedMask(index, data uint32, reg, value, mask uint8) {
	tx.write(index, reg)
	tx.write(data, merge(tx.read(data), value, mask))
}

// CR reads a CRTC register.
func (tx *Tx) CR(index uint8) uint8 {
	return tx.indexedRead(PortCRIndex, PortCRData, index)
}

// SetCR writes a CRTC register.
func (tx *Tx) SetCR(index, value uint8) {
	tx.indexedWrite(PortCRIndex, PortCRData, index, value)
}

// MaskCR replaces the bits of a CRTC register selected by mask.
func (tx *Tx) MaskCR(index, value, mask uint8) {
	tx.indexedMask(PortCRIndex, PortCRData, index, value, mask)
}

// Seq reads a sequencer register.
func (tx *Tx) Seq(index uint8) uint8 {
	return tx.indexedRead(PortSeqIndex, PortSeqData, index)
}

// SetSeq writes a sequencer register.
func (tx *Tx) SetSeq(index, value uint8) {
	tx.indexedWrite(PortSeqIndex, PortSeqData, index, value)
}

// MaskSeq replaces the bits of a sequencer register selected by mask.
func (tx *Tx) MaskSeq(index, value, mask uint8) {
	tx.indexedMask(PortSeqIndex, PortSeqData, index, value, mask)
}

// Graph reads a graphics controller register.
func (tx *Tx) Graph(index uint8) uint8 {
	return tx.indexedRead(PortGraphIndex, PortGraphData, index)
}

// SetGraph writes a graphics controller register.
func (tx *Tx) SetGraph(index, value uint8) {
	tx.indexedWrite(PortGraphIndex, PortGraphData, index, value)
}

// MaskGraph replaces the bits of a graphics controller register selected by mask.
func (tx *Tx) MaskGraph(index, value, mask uint8) {
	tx.indexedMask(PortGraphIndex, PortGraphData, index, value, mask)
}

// attr performs one attribute controller access. Index and data share a
// port behind a flip-flop that only a status 1 read puts back into index
// state, so the sequence is: flush, remember the selected index, select,
// access, flush, reselect the remembered index (this also restores PAS),
// flush. The flip-flop is left in index state.
func (tx *Tx) attr(index uint8, access func()) {
	tx.read(PortStatus1)
	prev := tx.read(PortAttrIndex)
	tx.write(PortAttrIndex, index&^attrPAS)
	access()
	tx.read(PortStatus1)
	tx.write(PortAttrIndex, prev)
	tx.read(PortStatus1)
}

// Attr reads an attribute controller register.
func (tx *Tx) Attr(index uint8) uint8 {
	var v uint8
	tx.attr(index, func() {
		v = tx.read(PortAttrData)
	})
	return v
}

// SetAttr writes an attribute controller register.
func (tx *Tx) SetAttr(index, value uint8) {
	tx.attr(index, func() {
		tx.write(PortAttrIndex, value)
	})
}

// MaskAttr replaces the bits of an attribute controller register selected by mask.
func (tx *Tx) MaskAttr(index, value, mask uint8) {
	tx.attr(index, func() {
		old := tx.read(PortAttrData)
		tx.write(PortAttrIndex, merge(old, value, mask))
	})
}

// Misc reads the miscellaneous output register.
func (tx *Tx) Misc() uint8 {
	return tx.read(PortMiscRead)
}

// SetMisc writes the miscellaneous output register.
func (tx *Tx) SetMisc(value uint8) {
	tx.write(PortMiscWrite, value)
}

// MaskMisc replaces the bits of the miscellaneous output register selected by mask.
func (tx *Tx) MaskMisc(value, mask uint8) {
	tx.write(PortMiscWrite, merge(tx.read(PortMiscRead), value, mask))
}

// Enable reads the VGA enable register.
func (tx *Tx) Enable() uint8 {
	return tx.read(PortEnable)
}

// SetEnable writes the VGA enable register.
func (tx *Tx) SetEnable(value uint8) {
	tx.write(PortEnable, value)
}

// MaskEnable replaces the bits of the VGA enable register selected by mask.
func (tx *Tx) MaskEnable(value, mask uint8) {
	tx.write(PortEnable, merge(tx.read(PortEnable), value, mask))
}

// Status1 reads input status 1. As a side effect the attribute flip-flop
// returns to index state.
func (tx *Tx) Status1() uint8 {
	return tx.read(PortStatus1)
}

// SetDACMask writes the pixel mask.
func (tx *Tx) SetDACMask(value uint8) {
	tx.write(PortDACMask, value)
}

// DACReadAddress selects the first palette entry for subsequent DACRead calls.
func (tx *Tx) DACReadAddress(index uint8) {
	tx.write(PortDACReadAddr, index)
}

// DACWriteAddress selects the first palette entry for subsequent DACWrite calls.
func (tx *Tx) DACWriteAddress(index uint8) {
	tx.write(PortDACWriteAddr, index)
}

// DACRead reads the next palette component (red, green, blue, auto-increment).
func (tx *Tx) DACRead() uint8 {
	return tx.read(PortDACData)
}

// DACWrite writes the next palette component.
func (tx *Tx) DACWrite(value uint8) {
	tx.write(PortDACData, value)
}

// CR reads a CRTC register in its own critical section.
func (r *Regs) CR(index uint8) (v uint8) {
	r.Do(func(tx *Tx) { v = tx.CR(index) })
	return v
}

// MaskCR replaces the bits of a CRTC register in its own critical section.
func (r *Regs) MaskCR(index, value, mask uint8) {
	r.Do(func(tx *Tx) { tx.MaskCR(index, value, mask) })
}

// Seq reads a sequencer register in its own critical section.
func (r *Regs) Seq(index uint8) (v uint8) {
	r.Do(func(tx *Tx) { v = tx.Seq(index) })
	return v
}

// Attr reads an attribute register in its own critical section.
func (r *Regs) Attr(index uint8) (v uint8) {
	r.Do(func(tx *Tx) { v = tx.Attr(index) })
	return v
}

// Misc reads the miscellaneous output register in its own critical section.
func (r *Regs) Misc() (v uint8) {
	r.Do(func(tx *Tx) { v = tx.Misc() })
	return v
}
