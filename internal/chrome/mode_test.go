package chrome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange/chromefb/internal/pll"
)

const testFBSize = 16 << 20

// vga640 is 640x480 with the DMT 60Hz porches at the given clock.
func vga640(bpp uint32, kHz int) ModeRequest {
	return ModeRequest{
		XRes:         640,
		YRes:         480,
		XResVirtual:  640,
		YResVirtual:  480,
		BitsPerPixel: bpp,
		PixClock:     PicosFromKHz(kHz),
		LeftMargin:   48,
		RightMargin:  16,
		UpperMargin:  33,
		LowerMargin:  10,
		HSyncLen:     96,
		VSyncLen:     2,
	}
}

func TestValidate640x480At16bpp(t *testing.T) {
	req := vga640(16, 39700)
	require.NoError(t, ValidateMode(VT3122, testFBSize, &req))

	require.Equal(t, uint32(640), req.XRes)
	require.Equal(t, Bitfield{Offset: 11, Length: 5}, req.Red)
	require.Equal(t, Bitfield{Offset: 5, Length: 6}, req.Green)
	require.Equal(t, Bitfield{Offset: 0, Length: 5}, req.Blue)
	require.Equal(t, Bitfield{}, req.Transp)

	s := VT3122.Family().Synthesize(req.PixClockKHz())
	dev := s.KHz - 39700
	if dev < 0 {
		dev = -dev
	}
	require.Less(t, dev, 1000, "%s", s)
}

func TestChannelLayouts(t *testing.T) {
	tests := []struct {
		bpp              uint32
		red, green, blue Bitfield
	}{
		{8, Bitfield{Length: 8}, Bitfield{Length: 8}, Bitfield{Length: 8}},
		{24, Bitfield{Offset: 16, Length: 8}, Bitfield{Offset: 8, Length: 8}, Bitfield{Length: 8}},
		{32, Bitfield{Offset: 16, Length: 8}, Bitfield{Offset: 8, Length: 8}, Bitfield{Length: 8}},
	}
	for _, tt := range tests {
		req := vga640(tt.bpp, 25175)
		require.NoError(t, ValidateMode(VT7205, testFBSize, &req))
		require.Equal(t, tt.red, req.Red, "%dbpp", tt.bpp)
		require.Equal(t, tt.green, req.Green, "%dbpp", tt.bpp)
		require.Equal(t, tt.blue, req.Blue, "%dbpp", tt.bpp)
	}
}

func TestUnsupportedDepth(t *testing.T) {
	for _, bpp := range []uint32{0, 1, 4, 12, 15, 64} {
		req := vga640(bpp, 25175)
		before := req
		err := ValidateMode(VT3122, testFBSize, &req)
		require.ErrorIs(t, err, ErrUnsupportedDepth, "%dbpp", bpp)
		require.Equal(t, before, req)
	}
}

func TestHorizontalAlignment(t *testing.T) {
	req := vga640(8, 25175)
	req.XRes = 633
	req.RightMargin = 13
	req.HSyncLen = 90
	req.LeftMargin = 41
	req.XResVirtual = 0
	require.NoError(t, ValidateMode(VT3122, testFBSize, &req))

	for _, v := range []uint32{req.XRes, req.RightMargin, req.HSyncLen, req.LeftMargin} {
		require.Zero(t, v%8, "value %d", v)
	}
	require.Equal(t, uint32(640), req.XRes)
	require.Equal(t, uint32(16), req.RightMargin)
	require.Equal(t, uint32(96), req.HSyncLen)
	require.Equal(t, uint32(48), req.LeftMargin)
	require.Equal(t, uint32(640), req.XResVirtual, "virtual raised to the aligned width")
}

func TestRangeLimits(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *ModeRequest)
		axis     Axis
		quantity string
	}{
		{"horizontal total", func(m *ModeRequest) {
			m.XRes, m.RightMargin, m.HSyncLen, m.LeftMargin = 2048, 1024, 256, 1024
		}, Horizontal, "total"},
		{"horizontal display", func(m *ModeRequest) {
			m.XRes, m.RightMargin, m.HSyncLen, m.LeftMargin = 2056, 8, 8, 8
		}, Horizontal, "display"},
		{"horizontal blank span", func(m *ModeRequest) {
			m.RightMargin, m.HSyncLen, m.LeftMargin = 512, 128, 400
		}, Horizontal, "blank span"},
		{"horizontal sync span", func(m *ModeRequest) {
			m.HSyncLen = 264
		}, Horizontal, "sync span"},
		{"vertical total", func(m *ModeRequest) {
			m.YRes, m.LowerMargin, m.VSyncLen, m.UpperMargin = 2000, 40, 5, 10
		}, Vertical, "total"},
		{"vertical display", func(m *ModeRequest) {
			m.YRes, m.LowerMargin, m.VSyncLen, m.UpperMargin = 2049, 0, 0, 0
		}, Vertical, "display"},
		{"vertical sync span", func(m *ModeRequest) {
			m.VSyncLen = 17
		}, Vertical, "sync span"},
		{"vertical blank span", func(m *ModeRequest) {
			m.LowerMargin, m.VSyncLen, m.UpperMargin = 200, 8, 50
		}, Vertical, "blank span"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := vga640(8, 25175)
			req.XResVirtual, req.YResVirtual = 0, 0
			tt.mutate(&req)
			err := ValidateMode(VT7205, 1<<30, &req)
			require.ErrorIs(t, err, ErrRangeExceeded)

			var rerr *RangeError
			require.True(t, errors.As(err, &rerr))
			require.Equal(t, tt.axis, rerr.Axis)
			require.Equal(t, tt.quantity, rerr.Quantity)
			require.Greater(t, rerr.Value, rerr.Limit)
		})
	}
}

func TestClockRange(t *testing.T) {
	for _, kHz := range []int{19000, 201000} {
		req := vga640(16, kHz)
		require.ErrorIs(t, ValidateMode(VT3122, testFBSize, &req), ErrClockOutOfRange, "%dkHz", kHz)
	}
	req := vga640(16, 25175)
	req.PixClock = 0
	require.ErrorIs(t, ValidateMode(VT3122, testFBSize, &req), ErrClockOutOfRange)

	req = vga640(16, 20100)
	require.NoError(t, ValidateMode(VT3122, testFBSize, &req))
	req = vga640(16, 199000)
	require.NoError(t, ValidateMode(VT3122, testFBSize, &req))
}

func TestRotationRejected(t *testing.T) {
	req := vga640(16, 25175)
	req.Rotate = 1
	require.ErrorIs(t, ValidateMode(VT3108, testFBSize, &req), ErrRotationUnsupported)
}

func TestPanningLimit(t *testing.T) {
	// a tall virtual buffer: the active timing is fine on its own
	req := vga640(32, 25175)
	req.XResVirtual = 1024
	req.YResVirtual = 16384

	tall := req
	require.ErrorIs(t, ValidateMode(VT3122, 1<<40, &tall), ErrPanningLimitExceeded)

	tall = req
	require.NoError(t, ValidateMode(VT7205, 1<<40, &tall))
	tall = req
	require.NoError(t, ValidateMode(VT3108, 1<<40, &tall))

	huge := req
	huge.YResVirtual = 40000
	require.ErrorIs(t, ValidateMode(VT3108, 1<<40, &huge), ErrPanningLimitExceeded)
}

func TestFramebufferCapacity(t *testing.T) {
	req := vga640(32, 25175)
	req.XResVirtual = 2048
	req.YResVirtual = 2048
	require.ErrorIs(t, ValidateMode(VT3122, testFBSize, &req), ErrFramebufferTooSmall)

	req.YResVirtual = 2047
	require.NoError(t, ValidateMode(VT3122, testFBSize, &req))
}

func TestChipIdentification(t *testing.T) {
	for _, v := range []ChipVariant{VT3122, VT3108, VT7205} {
		got, err := ChipFromDeviceID(v.DeviceID())
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Equal(t, pll.FamilyCLE266, VT3122.Family())
	require.Equal(t, pll.FamilyCLE266, VT7205.Family())
	require.Equal(t, pll.FamilyPro, VT3108.Family())
	require.Equal(t, uint64(0x1FFFFFF), VT3122.PanLimit())
	require.Equal(t, uint64(0x7FFFFFF), VT7205.PanLimit())

	_, err := ChipFromDeviceID(0x3344)
	require.ErrorIs(t, err, ErrUnsupportedChip)
	require.Contains(t, err.Error(), "VT3344")

	_, err = ChipFromDeviceID(0x1234)
	require.ErrorIs(t, err, ErrUnsupportedChip)

	req := vga640(16, 25175)
	require.ErrorIs(t, ValidateMode(ChipVariant(9), testFBSize, &req), ErrUnsupportedChip)
}
