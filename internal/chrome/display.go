package chrome

import (
	"fmt"

	"github.com/tinyrange/chromefb/internal/vgaio"
)

// SetColormap loads colors into the palette starting at entry start.
func (d *Device) SetColormap(start int, colors []Color) error {
	if start < 0 || start+len(colors) > 0xFF {
		return fmt.Errorf("%w: start %d count %d", ErrPaletteRange, start, len(colors))
	}

	d.regs.Do(func(tx *vgaio.Tx) {
		tx.SetDACMask(0xFF)

		tx.DACWriteAddress(uint8(start))
		for _, c := range colors {
			tx.DACWrite(c.Red)
			tx.DACWrite(c.Green)
			tx.DACWrite(c.Blue)
		}

		// overscan: black
		tx.SetAttr(0x11, 0x00)
	})
	return nil
}

// BlankLevel follows the framebuffer blanking levels.
type BlankLevel int

const (
	BlankUnblank BlankLevel = iota
	BlankNormal
	BlankVSyncSuspend
	BlankHSyncSuspend
	BlankPowerdown
)

func (l BlankLevel) String() string {
	switch l {
	case BlankUnblank:
		return "unblank"
	case BlankNormal:
		return "normal"
	case BlankVSyncSuspend:
		return "vsync-suspend"
	case BlankHSyncSuspend:
		return "hsync-suspend"
	case BlankPowerdown:
		return "powerdown"
	default:
		return fmt.Sprintf("BlankLevel(%d)", int(l))
	}
}

// Blank turns the CRTC output on or off. Every blanking level stops the
// CRTC; the sync signals are not controlled separately.
func (d *Device) Blank(level BlankLevel) error {
	var value uint8
	switch level {
	case BlankUnblank:
		value = 0x80
	case BlankNormal, BlankVSyncSuspend, BlankHSyncSuspend, BlankPowerdown:
		value = 0x00
	default:
		return fmt.Errorf("%w: %d", ErrInvalidBlank, int(level))
	}
	d.regs.MaskCR(0x17, value, 0x80)
	return nil
}

// Pan moves the top left corner of the visible area to (x, y) of the
// virtual buffer.
func (d *Device) Pan(x, y uint32) error {
	d.mu.Lock()
	mode := d.mode
	d.mu.Unlock()
	if mode == nil {
		return ErrNoMode
	}

	m := &mode.Request
	if uint64(x)+uint64(m.XRes) > uint64(m.XResVirtual) || uint64(y)+uint64(m.YRes) > uint64(m.YResVirtual) {
		return fmt.Errorf("%w: %dx%d at %d,%d in %dx%d",
			ErrPanOutOfRange, m.XRes, m.YRes, x, y, m.XResVirtual, m.YResVirtual)
	}

	// start address in 16 bit units
	base := (uint64(y)*uint64(m.XResVirtual) + uint64(x)) * uint64(m.BytesPerPixel()) >> 1

	d.regs.Do(func(tx *vgaio.Tx) {
		tx.SetCR(0x0C, uint8(base>>8))
		tx.SetCR(0x0D, uint8(base))
		tx.SetCR(0x34, uint8(base>>16))
		// bits 25:24 exist only on the UniChrome; harmless on the CastleRock
		tx.MaskCR(0x48, uint8(base>>24), 0x03)
	})

	d.mu.Lock()
	if d.mode != nil {
		d.mode.Request.XOffset = x
		d.mode.Request.YOffset = y
	}
	d.mu.Unlock()
	return nil
}
