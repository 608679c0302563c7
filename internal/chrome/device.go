// Package chrome drives the primary display of VIA UniChrome IGPs: it
// validates and programs display timings and dot clocks, saves and restores
// the legacy VGA state around ownership sessions, and learns the framebuffer
// layout from the host bridge.
package chrome

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyrange/chromefb/internal/pci"
	"github.com/tinyrange/chromefb/internal/pll"
	"github.com/tinyrange/chromefb/internal/vgaio"
)

// Config describes the hardware handed to Attach.
type Config struct {
	// Registers is the mapped MMIO aperture (BAR1), at least
	// vgaio.ApertureSize bytes.
	Registers vgaio.Aperture
	// Framebuffer is the mapped start of video memory. It may be nil, in
	// which case text mode planes are not saved.
	Framebuffer []byte

	Bus  pci.Bus
	Self pci.Location

	// EnableDirect opens the CPU direct access window on bridges where it
	// is off.
	EnableDirect bool

	Logger *slog.Logger
}

// AppliedMode is the mode currently programmed.
type AppliedMode struct {
	Request    ModeRequest
	Clock      pll.Solution
	LineLength uint32 // bytes per scanline
}

// Device is one attached chrome.
type Device struct {
	log      *slog.Logger
	chip     ChipVariant
	regs     *vgaio.Regs
	fb       []byte
	platform PlatformInfo

	mu    sync.Mutex
	users int
	saved *RegisterFile
	mode  *AppliedMode
}

// Attach identifies the chrome at cfg.Self, discovers the platform and
// brings up register and framebuffer access.
func Attach(cfg Config) (*Device, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	self, err := cfg.Bus.Function(cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Self, err)
	}
	vendor, device, err := pci.Identity(self)
	if err != nil {
		return nil, fmt.Errorf("identify %s: %w", cfg.Self, err)
	}
	if vendor != VendorVIA {
		return nil, fmt.Errorf("%w: %s is 0x%04X:0x%04X", ErrUnsupportedChip, cfg.Self, vendor, device)
	}
	chip, err := ChipFromDeviceID(device)
	if err != nil {
		return nil, err
	}

	platform, err := Discover(cfg.Bus, cfg.Self, cfg.EnableDirect, log)
	if err != nil {
		return nil, fmt.Errorf("discover platform: %w", err)
	}
	log.Info("found chrome", "chip", chip, "host", platform.Host, "rev", fmt.Sprintf("0x%02X", platform.Revision))

	d := &Device{
		log:      log,
		chip:     chip,
		regs:     vgaio.NewRegs(cfg.Registers),
		fb:       cfg.Framebuffer,
		platform: platform,
	}

	d.regs.Do(func(tx *vgaio.Tx) {
		tx.MaskEnable(0x01, 0x01)    // VGA on
		tx.MaskMisc(0x01, 0x01)      // CRTC at 0x3Dx
		tx.SetSeq(0x10, 0x01)        // unlock extended registers
		tx.MaskSeq(0x1A, 0x60, 0x60) // MMIO for the primary

		tx.SetSeq(0x02, 0x0F)        // write all planes
		tx.SetSeq(0x04, 0x0E)        // extended memory
		tx.MaskSeq(0x1A, 0x08, 0x08) // extended memory access
	})

	return d, nil
}

// Detach releases the device. It fails while sessions are open, since
// the saved state would be lost.
func (d *Device) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.users != 0 {
		return fmt.Errorf("%w: detach with %d open sessions", ErrInvalidOwnershipState, d.users)
	}
	d.log.Debug("detached", "chip", d.chip)
	return nil
}

// Chip returns the chrome variant.
func (d *Device) Chip() ChipVariant {
	return d.chip
}

// Platform returns what discovery found.
func (d *Device) Platform() PlatformInfo {
	return d.platform
}

// Validate checks req against this device and fills in the derived fields.
// Hardware is not touched.
func (d *Device) Validate(req *ModeRequest) error {
	if err := ValidateMode(d.chip, d.platform.FramebufferSize, req); err != nil {
		d.log.Warn("mode rejected", "mode", req.String(), "err", err)
		return err
	}
	return nil
}

// SetMode validates req and, only if it is accepted in full, programs the
// CRTC and the dot clock.
func (d *Device) SetMode(req *ModeRequest) error {
	if err := d.Validate(req); err != nil {
		return err
	}

	family := d.chip.Family()
	clock := family.Synthesize(req.PixClockKHz())
	d.log.Debug("dot clock", "want_khz", req.PixClockKHz(), "pll", clock.String())

	d.regs.Do(func(tx *vgaio.Tx) {
		writeCRTC(tx, req)
		writeClock(tx, family, clock)
	})

	d.mu.Lock()
	d.mode = &AppliedMode{
		Request:    *req,
		Clock:      clock,
		LineLength: req.XResVirtual * req.BytesPerPixel(),
	}
	d.mu.Unlock()

	d.log.Info("mode set", "mode", req.String(), "clock_khz", clock.KHz)
	return nil
}

// Mode returns the mode last programmed by SetMode.
func (d *Device) Mode() (AppliedMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == nil {
		return AppliedMode{}, ErrNoMode
	}
	return *d.mode, nil
}

// Snapshot reads the current legacy register state without affecting
// ownership.
func (d *Device) Snapshot() *RegisterFile {
	var rf *RegisterFile
	d.regs.Do(func(tx *vgaio.Tx) {
		rf = storeRegisters(tx, d.fb)
	})
	return rf
}
