package modedb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange/chromefb/internal/chrome"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"640x480", "640x480@60"},
		{"640x480@60", "640x480@60"},
		{"640x400@70", "640x400@70"},
		{" 800x600@60 ", "800x600@60"},
		{"1280x1024", "1280x1024@60"},
	}
	for _, tt := range tests {
		m, err := Lookup(tt.name)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, m.Name())
	}
}

func TestLookupErrors(t *testing.T) {
	for _, name := range []string{"", "640", "640x", "x480", "640x480@", "axb", "640x480@6o"} {
		_, err := Lookup(name)
		require.ErrorIs(t, err, ErrBadModeName, "%q", name)
	}
	for _, name := range []string{"640x480@75", "1600x1200"} {
		_, err := Lookup(name)
		require.ErrorIs(t, err, ErrUnknownMode, "%q", name)
	}
}

func TestRefreshRates(t *testing.T) {
	for _, m := range Modes() {
		htotal := m.XRes + m.LeftMargin + m.RightMargin + m.HSyncLen
		vtotal := m.YRes + m.UpperMargin + m.LowerMargin + m.VSyncLen
		hz := 1e12 / float64(m.PixClock) / float64(htotal*vtotal)
		require.InDelta(t, float64(m.Refresh), hz, 1.5, m.Name())
	}
}

func TestModesValidate(t *testing.T) {
	for _, chip := range []chrome.ChipVariant{chrome.VT3122, chrome.VT3108, chrome.VT7205} {
		for _, m := range Modes() {
			for _, bpp := range []uint32{8, 16, 32} {
				req := m.Request(bpp, 0, 0)
				require.NoError(t, chrome.ValidateMode(chip, 16<<20, &req), "%s %s %dbpp", chip, m.Name(), bpp)
				require.Equal(t, m.XRes, req.XResVirtual)
				require.Equal(t, m.YRes, req.YResVirtual)
			}
		}
	}
}

func TestModesIsCopy(t *testing.T) {
	list := Modes()
	list[0].XRes = 1
	require.Equal(t, uint32(640), Modes()[0].XRes)
}
