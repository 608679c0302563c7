// Package modedb holds a small set of standard display timings in the
// framebuffer convention: pixel clock in picoseconds, margins and sync
// lengths in pixels or lines.
package modedb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyrange/chromefb/internal/chrome"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrBadModeName = errors.New("malformed mode name")
)

// Mode is one entry of the database.
type Mode struct {
	XRes, YRes  uint32
	Refresh     uint32 // Hz
	PixClock    uint32 // ps
	LeftMargin  uint32
	RightMargin uint32
	UpperMargin uint32
	LowerMargin uint32
	HSyncLen    uint32
	VSyncLen    uint32
	Sync        uint32
}

var modes = []Mode{
	{XRes: 640, YRes: 400, Refresh: 70, PixClock: 39721,
		LeftMargin: 40, RightMargin: 24, UpperMargin: 39, LowerMargin: 9, HSyncLen: 96, VSyncLen: 2},
	{XRes: 640, YRes: 480, Refresh: 60, PixClock: 39721,
		LeftMargin: 48, RightMargin: 16, UpperMargin: 33, LowerMargin: 10, HSyncLen: 96, VSyncLen: 2},
	{XRes: 800, YRes: 600, Refresh: 60, PixClock: 25000,
		LeftMargin: 88, RightMargin: 40, UpperMargin: 23, LowerMargin: 1, HSyncLen: 128, VSyncLen: 4,
		Sync: chrome.SyncHorHighAct | chrome.SyncVertHighAct},
	{XRes: 1024, YRes: 768, Refresh: 60, PixClock: 15384,
		LeftMargin: 160, RightMargin: 24, UpperMargin: 29, LowerMargin: 3, HSyncLen: 136, VSyncLen: 6},
	{XRes: 1280, YRes: 1024, Refresh: 60, PixClock: 9259,
		LeftMargin: 248, RightMargin: 48, UpperMargin: 38, LowerMargin: 1, HSyncLen: 112, VSyncLen: 3,
		Sync: chrome.SyncHorHighAct | chrome.SyncVertHighAct},
}

// Name returns the WxH@R form of m.
func (m Mode) Name() string {
	return fmt.Sprintf("%dx%d@%d", m.XRes, m.YRes, m.Refresh)
}

// Request builds a mode request for m at the given depth. A zero virtual
// size means the visible size.
func (m Mode) Request(bpp, virtualWidth, virtualHeight uint32) chrome.ModeRequest {
	return chrome.ModeRequest{
		XRes:         m.XRes,
		YRes:         m.YRes,
		XResVirtual:  virtualWidth,
		YResVirtual:  virtualHeight,
		BitsPerPixel: bpp,
		PixClock:     m.PixClock,
		LeftMargin:   m.LeftMargin,
		RightMargin:  m.RightMargin,
		UpperMargin:  m.UpperMargin,
		LowerMargin:  m.LowerMargin,
		HSyncLen:     m.HSyncLen,
		VSyncLen:     m.VSyncLen,
		Sync:         m.Sync,
	}
}

// Modes returns every entry, smallest first.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// Lookup finds a mode by "WxH" or "WxH@R".
func Lookup(name string) (Mode, error) {
	res, rate, hasRate := strings.Cut(strings.TrimSpace(name), "@")
	w, h, ok := strings.Cut(res, "x")
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrBadModeName, name)
	}

	xres, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return Mode{}, fmt.Errorf("%w: %q", ErrBadModeName, name)
	}
	yres, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return Mode{}, fmt.Errorf("%w: %q", ErrBadModeName, name)
	}
	var refresh uint64
	if hasRate {
		if refresh, err = strconv.ParseUint(rate, 10, 32); err != nil {
			return Mode{}, fmt.Errorf("%w: %q", ErrBadModeName, name)
		}
	}

	for _, m := range modes {
		if uint64(m.XRes) != xres || uint64(m.YRes) != yres {
			continue
		}
		if hasRate && uint64(m.Refresh) != refresh {
			continue
		}
		return m, nil
	}
	return Mode{}, fmt.Errorf("%w: %s", ErrUnknownMode, name)
}
