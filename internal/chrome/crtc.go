package chrome

import "github.com/tinyrange/chromefb/internal/vgaio"

// sr15Depth holds the SR15 bits [7:2] selecting the pixel format.
var sr15Depth = map[uint32]uint8{
	8:  0x20,
	16: 0xB4,
	24: 0xAC,
	32: 0xAC,
}

var graphBaseline = [8]uint8{0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x05, 0x0F}

func lo8(v int) uint8 {
	return uint8(v & 0xFF)
}

// writeCRTC programs the primary CRTC for m. m must have been validated.
// The sequencer is held in reset throughout and restarted at the end; the
// clock is programmed separately.
func writeCRTC(tx *vgaio.Tx, m *ModeRequest) {
	h := horizontalTiming(m)
	v := verticalTiming(m)
	bpp := int(m.BytesPerPixel())

	// unlock
	tx.MaskCR(0x11, 0x00, 0x80) // CR00-07 write protect
	tx.MaskCR(0x03, 0x80, 0x80) // vertical retrace access
	tx.MaskCR(0x47, 0x00, 0x01) // extended CRT lock
	tx.SetSeq(0x00, 0x00)

	misc := uint8(0x23 | 0x0C) // colour, RAM enabled, external clock
	if m.Sync&SyncHorHighAct == 0 {
		misc |= 0x40
	}
	if m.Sync&SyncVertHighAct == 0 {
		misc |= 0x80
	}
	tx.SetMisc(misc)

	tx.SetSeq(0x01, 0x01)
	tx.SetSeq(0x02, 0x0F)
	tx.SetSeq(0x03, 0x00)
	tx.SetSeq(0x04, 0x0E)
	tx.MaskSeq(0x15, 0x02, 0x02)
	tx.MaskSeq(0x15, sr15Depth[m.BitsPerPixel], 0xFC)
	tx.MaskSeq(0x16, 0x08, 0xBF)
	tx.SetSeq(0x17, 0x1F)
	tx.SetSeq(0x18, 0x4E)
	tx.MaskSeq(0x1A, 0x08, 0xFD)

	for i, val := range graphBaseline {
		tx.SetGraph(uint8(i), val)
	}
	tx.SetGraph(0x20, 0x00)
	tx.SetGraph(0x21, 0x00)
	tx.SetGraph(0x22, 0x00)

	for i := uint8(0); i < 0x10; i++ {
		tx.SetAttr(i, i)
	}
	tx.SetAttr(0x10, 0x41)
	tx.SetAttr(0x11, 0xFF)
	tx.SetAttr(0x12, 0x0F)
	tx.SetAttr(0x13, 0x00)

	writeHorizontal(tx, h)
	writeVertical(tx, v)

	// pitch in quadwords
	offset := int(m.XResVirtual) * bpp >> 3
	offset = (offset + 3) &^ 3
	tx.SetCR(0x13, lo8(offset))
	tx.MaskCR(0x35, lo8(offset>>3), 0xE0)

	// fetch count in 16 byte units, per virtual scanline
	fetch := int(m.XResVirtual) * bpp >> 3
	fetch = (fetch + 3) &^ 3
	tx.SetSeq(0x1C, lo8(fetch>>1))
	tx.MaskSeq(0x1D, lo8(fetch>>9), 0x03)

	tx.SetSeq(0x00, 0x03)
}

func writeHorizontal(tx *vgaio.Tx, h timing) {
	// total
	temp := (h.total >> 3) - 5
	tx.SetCR(0x00, lo8(temp))
	tx.MaskCR(0x36, lo8(temp>>5), 0x08)

	// display end
	tx.SetCR(0x01, lo8((h.display>>3)-1))

	// blank start
	tx.SetCR(0x02, lo8((h.blankStart>>3)-1))

	// blank end
	temp = (h.blankEnd >> 3) - 1
	tx.MaskCR(0x03, lo8(temp), 0x1F)
	tx.MaskCR(0x05, lo8(temp<<2), 0x80)
	tx.MaskCR(0x33, lo8(temp>>1), 0x20)

	// sync start
	temp = h.syncStart >> 3
	tx.SetCR(0x04, lo8(temp))
	tx.MaskCR(0x33, lo8(temp>>4), 0x10)

	// sync end
	tx.MaskCR(0x05, lo8(h.syncEnd>>3), 0x1F)
}

func writeVertical(tx *vgaio.Tx, v timing) {
	// total
	temp := v.total - 2
	tx.SetCR(0x06, lo8(temp))
	tx.MaskCR(0x07, lo8(temp>>8), 0x01)
	tx.MaskCR(0x07, lo8(temp>>4), 0x20)
	tx.MaskCR(0x35, lo8(temp>>10), 0x01)

	// display end
	temp = v.display - 1
	tx.SetCR(0x12, lo8(temp))
	tx.MaskCR(0x07, lo8(temp>>7), 0x02)
	tx.MaskCR(0x07, lo8(temp>>3), 0x40)
	tx.MaskCR(0x35, lo8(temp>>8), 0x04)

	// start address
	tx.SetCR(0x0C, 0x00)
	tx.SetCR(0x0D, 0x00)
	tx.SetCR(0x34, 0x00)
	tx.MaskCR(0x48, 0x00, 0x03)

	// sync start
	temp = v.syncStart
	tx.SetCR(0x10, lo8(temp))
	tx.MaskCR(0x07, lo8(temp>>6), 0x04)
	tx.MaskCR(0x07, lo8(temp>>2), 0x80)
	tx.MaskCR(0x35, lo8(temp>>9), 0x02)

	// sync end
	tx.MaskCR(0x11, lo8(v.syncEnd), 0x0F)

	// line compare: never split the screen
	tx.SetCR(0x18, 0xFF)
	tx.MaskCR(0x07, 0x10, 0x10)
	tx.MaskCR(0x09, 0x40, 0x40)
	tx.MaskCR(0x33, 0x07, 0x06)
	tx.MaskCR(0x35, 0x10, 0x10)

	// maximum scan line and underline off
	tx.MaskCR(0x09, 0x00, 0x1F)
	tx.SetCR(0x14, 0x00)

	// blank start
	temp = v.blankStart - 1
	tx.SetCR(0x15, lo8(temp))
	tx.MaskCR(0x07, lo8(temp>>5), 0x08)
	tx.MaskCR(0x09, lo8(temp>>4), 0x20)
	tx.MaskCR(0x35, lo8(temp>>7), 0x08)

	// blank end
	tx.SetCR(0x16, lo8(v.blankEnd-1))

	tx.SetCR(0x08, 0x00)
	tx.SetCR(0x32, 0x00)
	tx.MaskCR(0x33, 0x00, 0xC8)
}
