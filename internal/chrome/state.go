package chrome

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/tinyrange/chromefb/internal/vgaio"
)

// PlaneSize is the size of one legacy VGA memory plane.
const PlaneSize = 64 * 1024

// Saved register ranges. CR 0x1E-0x32 and SR 0x05-0x0F are not implemented.
var (
	crRanges = [][2]int{{0x00, 0x1E}, {0x33, 0xA3}}
	srRanges = [][2]int{{0x01, 0x05}, {0x10, 0x50}}
)

// Color is one palette entry.
type Color struct {
	Red, Green, Blue uint8
}

// RegisterFile is a copy of the legacy VGA state of the primary display.
type RegisterFile struct {
	CR      [0xA3]uint8
	SR      [0x50]uint8
	GR      [0x08]uint8
	AR      [0x14]uint8
	Misc    uint8
	Palette [256]Color

	// Planes holds the four text mode planes. It is nil when the display
	// was in graphics mode.
	Planes []byte
}

// TextMode reports whether the attribute controller was in text mode.
func (rf *RegisterFile) TextMode() bool {
	return rf.AR[0x10]&0x01 == 0
}

// storeRegisters reads the full legacy register set. fb is the start of
// video memory; it may be shorter than four planes, in which case planes are
// not saved.
func storeRegisters(tx *vgaio.Tx, fb []byte) *RegisterFile {
	rf := &RegisterFile{}

	for _, r := range crRanges {
		for i := r[0]; i < r[1]; i++ {
			rf.CR[i] = tx.CR(uint8(i))
		}
	}

	rf.SR[0x00] = tx.Seq(0x00)
	for _, r := range srRanges {
		for i := r[0]; i < r[1]; i++ {
			rf.SR[i] = tx.Seq(uint8(i))
		}
	}

	for i := range rf.GR {
		rf.GR[i] = tx.Graph(uint8(i))
	}

	for i := range rf.AR {
		rf.AR[i] = tx.Attr(uint8(i))
	}

	rf.Misc = tx.Misc()

	// two planes of text, two of font
	if rf.TextMode() && len(fb) >= 4*PlaneSize {
		rf.Planes = make([]byte, 4*PlaneSize)
		copy(rf.Planes, fb)
	}

	tx.DACReadAddress(0x00)
	for i := range rf.Palette {
		rf.Palette[i].Red = tx.DACRead()
		rf.Palette[i].Green = tx.DACRead()
		rf.Palette[i].Blue = tx.DACRead()
	}

	return rf
}

// restoreRegisters writes rf back. The sequencer stays in synchronous reset
// until the clock has been reset and the palette reloaded.
func restoreRegisters(tx *vgaio.Tx, fb []byte, rf *RegisterFile) {
	tx.MaskSeq(0x00, 0x00, 0x02)

	for _, r := range crRanges {
		for i := r[0]; i < r[1]; i++ {
			tx.SetCR(uint8(i), rf.CR[i])
		}
	}

	// keep the reset asserted
	tx.SetSeq(0x00, rf.SR[0x00]&0xFD)
	for _, r := range srRanges {
		for i := r[0]; i < r[1]; i++ {
			tx.SetSeq(uint8(i), rf.SR[i])
		}
	}

	for i, v := range rf.GR {
		tx.SetGraph(uint8(i), v)
	}

	for i, v := range rf.AR {
		tx.SetAttr(uint8(i), v)
	}

	if rf.Planes != nil {
		copy(fb, rf.Planes)
	}

	tx.DACWriteAddress(0x00)
	for _, c := range rf.Palette {
		tx.DACWrite(c.Red)
		tx.DACWrite(c.Green)
		tx.DACWrite(c.Blue)
	}

	// reset both display clocks
	tx.MaskSeq(0x40, 0x06, 0x06)
	tx.MaskSeq(0x40, 0x00, 0x06)

	tx.SetMisc(rf.Misc)

	tx.MaskSeq(0x00, 0x02, 0x02)
}

// Save writes rf to w.
func (rf *RegisterFile) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(rf); err != nil {
		return fmt.Errorf("encode register file: %w", err)
	}
	return nil
}

// LoadRegisterFile reads a register file written by Save.
func LoadRegisterFile(r io.Reader) (*RegisterFile, error) {
	rf := &RegisterFile{}
	if err := gob.NewDecoder(r).Decode(rf); err != nil {
		return nil, fmt.Errorf("decode register file: %w", err)
	}
	return rf, nil
}
