package chrome

import "fmt"

// Sync polarity flags of ModeRequest.Sync. A clear bit means active low.
const (
	SyncHorHighAct  = 1 << 0
	SyncVertHighAct = 1 << 1
)

// Dot clock limits in Hz.
const (
	MinDotClock = 20_000_000
	MaxDotClock = 200_000_000
)

// Bitfield describes where one colour channel sits inside a pixel.
type Bitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight bool
}

// ModeRequest is a display timing in the framebuffer convention: horizontal
// and vertical quantities in pixels and lines, the dot clock as a period in
// picoseconds. Validation fills in the channel layout.
type ModeRequest struct {
	XRes, YRes               uint32
	XResVirtual, YResVirtual uint32
	XOffset, YOffset         uint32
	BitsPerPixel             uint32

	Red, Green, Blue, Transp Bitfield

	PixClock    uint32 // picoseconds
	LeftMargin  uint32 // back porch
	RightMargin uint32 // front porch
	UpperMargin uint32
	LowerMargin uint32
	HSyncLen    uint32
	VSyncLen    uint32
	Sync        uint32
	Rotate      uint32
}

func (m *ModeRequest) String() string {
	return fmt.Sprintf("%dx%d@%dbpp (virtual %dx%d) at %dkHz",
		m.XRes, m.YRes, m.BitsPerPixel, m.XResVirtual, m.YResVirtual, m.PixClockKHz())
}

// BytesPerPixel returns the memory footprint of one pixel, or 0 when the depth
// is not supported. 24bpp is stored unpacked.
func (m *ModeRequest) BytesPerPixel() uint32 {
	switch m.BitsPerPixel {
	case 8, 16:
		return m.BitsPerPixel / 8
	case 24, 32:
		return 4
	default:
		return 0
	}
}

// PixClockKHz converts the dot clock period to kHz.
func (m *ModeRequest) PixClockKHz() int {
	if m.PixClock == 0 {
		return 0
	}
	return int(1_000_000_000 / uint64(m.PixClock))
}

// PixClockHz converts the dot clock period to Hz.
func (m *ModeRequest) PixClockHz() uint64 {
	if m.PixClock == 0 {
		return 0
	}
	return 1_000_000_000_000 / uint64(m.PixClock)
}

// PicosFromKHz converts a frequency to a dot clock period.
func PicosFromKHz(kHz int) uint32 {
	if kHz <= 0 {
		return 0
	}
	return uint32(1_000_000_000 / kHz)
}

// timing is one axis of a mode, overscan assumed zero.
type timing struct {
	display    int
	blankStart int
	syncStart  int
	syncEnd    int
	blankEnd   int
	total      int
}

func horizontalTiming(m *ModeRequest) timing {
	t := timing{display: int(m.XRes), blankStart: int(m.XRes)}
	t.syncStart = t.blankStart + int(m.RightMargin)
	t.syncEnd = t.syncStart + int(m.HSyncLen)
	t.blankEnd = t.syncEnd + int(m.LeftMargin)
	t.total = t.blankEnd
	return t
}

func verticalTiming(m *ModeRequest) timing {
	t := timing{display: int(m.YRes), blankStart: int(m.YRes)}
	t.syncStart = t.blankStart + int(m.LowerMargin)
	t.syncEnd = t.syncStart + int(m.VSyncLen)
	t.blankEnd = t.syncEnd + int(m.UpperMargin)
	t.total = t.blankEnd
	return t
}

// limit is one row of the range table.
type limit struct {
	quantity string
	value    func(t timing) int
	max      int
}

var horizontalLimits = []limit{
	{"total", func(t timing) int { return t.total }, 4100},
	{"display", func(t timing) int { return t.display }, 2048},
	{"blank start", func(t timing) int { return t.blankStart }, 2048},
	{"blank span", func(t timing) int { return t.blankEnd - t.blankStart }, 1025},
	{"sync start", func(t timing) int { return t.syncStart }, 4095},
	{"sync span", func(t timing) int { return t.syncEnd - t.syncStart }, 256},
}

var verticalLimits = []limit{
	{"total", func(t timing) int { return t.total }, 2049},
	{"display", func(t timing) int { return t.display }, 2048},
	{"sync start", func(t timing) int { return t.syncStart }, 2047},
	{"sync span", func(t timing) int { return t.syncEnd - t.syncStart }, 16},
	{"blank start", func(t timing) int { return t.blankStart }, 2048},
	{"blank span", func(t timing) int { return t.blankEnd - t.blankStart }, 257},
}

func checkLimits(axis Axis, t timing, limits []limit) error {
	for _, l := range limits {
		if v := l.value(t); v > l.max {
			return &RangeError{Axis: axis, Quantity: l.quantity, Value: v, Limit: l.max}
		}
	}
	return nil
}

// alignH rounds a horizontal quantity up to a character clock.
func alignH(v uint32) uint32 {
	return (v + 7) &^ 7
}

// maxPanOffset is the start address needed to show the last line of the
// virtual buffer.
func maxPanOffset(m *ModeRequest) uint64 {
	bpp := uint64(m.BytesPerPixel())
	pitch := uint64(m.XResVirtual) * bpp
	offset := pitch * (uint64(m.YResVirtual) - uint64(m.YRes) + 1)
	last := (uint64(m.XRes) - 1) * bpp
	if offset < last {
		return 0
	}
	return offset - last
}

// ValidateMode checks req against the limits of chip with fbSize bytes of
// video memory. On success req is updated with the aligned timing, the
// effective virtual size and the channel layout. On failure req is left
// as it was.
func ValidateMode(chip ChipVariant, fbSize uint64, req *ModeRequest) error {
	info, err := chip.info()
	if err != nil {
		return err
	}

	m := *req

	bpp := m.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %dbpp", ErrUnsupportedDepth, m.BitsPerPixel)
	}
	if m.Rotate != 0 {
		return fmt.Errorf("%w: rotate %d", ErrRotationUnsupported, m.Rotate)
	}

	m.XRes = alignH(m.XRes)
	m.RightMargin = alignH(m.RightMargin)
	m.HSyncLen = alignH(m.HSyncLen)
	m.LeftMargin = alignH(m.LeftMargin)

	if m.XResVirtual < m.XRes {
		m.XResVirtual = m.XRes
	}
	if m.YResVirtual < m.YRes {
		m.YResVirtual = m.YRes
	}

	if hz := m.PixClockHz(); hz < MinDotClock || hz > MaxDotClock {
		return fmt.Errorf("%w: %dHz not in [%d, %d]", ErrClockOutOfRange, hz, MinDotClock, MaxDotClock)
	}

	if err := checkLimits(Horizontal, horizontalTiming(&m), horizontalLimits); err != nil {
		return err
	}
	if err := checkLimits(Vertical, verticalTiming(&m), verticalLimits); err != nil {
		return err
	}

	if offset := maxPanOffset(&m); offset >= info.panLimit {
		return fmt.Errorf("%w: offset %#x, %s allows %#x", ErrPanningLimitExceeded, offset, info.name, info.panLimit)
	}

	if need := uint64(m.XResVirtual) * uint64(m.YResVirtual) * uint64(bpp); need >= fbSize {
		return fmt.Errorf("%w: %dx%d@%dbpp needs %d bytes, have %d",
			ErrFramebufferTooSmall, m.XResVirtual, m.YResVirtual, m.BitsPerPixel, need, fbSize)
	}

	switch m.BitsPerPixel {
	case 8:
		// indexed: the length is the width of a palette entry
		m.Red = Bitfield{Length: 8}
		m.Green = Bitfield{Length: 8}
		m.Blue = Bitfield{Length: 8}
	case 16:
		m.Red = Bitfield{Offset: 11, Length: 5}
		m.Green = Bitfield{Offset: 5, Length: 6}
		m.Blue = Bitfield{Offset: 0, Length: 5}
	case 24, 32:
		m.Red = Bitfield{Offset: 16, Length: 8}
		m.Green = Bitfield{Offset: 8, Length: 8}
		m.Blue = Bitfield{Offset: 0, Length: 8}
	}
	m.Transp = Bitfield{}

	*req = m
	return nil
}
