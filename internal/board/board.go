// Package board turns a configuration into an attached chrome device, on
// real hardware through sysfs or on a simulated platform.
package board

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tinyrange/chromefb/internal/chrome"
	"github.com/tinyrange/chromefb/internal/config"
	"github.com/tinyrange/chromefb/internal/modedb"
	"github.com/tinyrange/chromefb/internal/pci"
	"github.com/tinyrange/chromefb/internal/vgaio"
	"github.com/tinyrange/chromefb/internal/vgasim"
)

// ErrNoChrome is returned when no supported display controller is present.
var ErrNoChrome = errors.New("no supported VIA chrome found")

// sysfsRoot is replaced by tests.
var sysfsRoot = pci.DefaultSysfsRoot

// Board is an attached device plus the resources backing it.
type Board struct {
	Device   *chrome.Device
	Location pci.Location
	// Sim is the simulated platform, nil on hardware.
	Sim *vgasim.Platform

	closers []io.Closer
}

// Open attaches the device cfg describes.
func Open(cfg config.Config, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Simulate != "" {
		return openSim(cfg, log)
	}
	return openSysfs(cfg, log)
}

func openSim(cfg config.Config, log *slog.Logger) (*Board, error) {
	p, err := vgasim.NewPlatform(cfg.Simulate)
	if err != nil {
		return nil, err
	}
	log.Debug("simulated platform", "preset", p.Name, "desc", vgasim.Describe(p.Name))

	dev, err := chrome.Attach(chrome.Config{
		Registers:    p.Chip,
		Framebuffer:  p.Chip.VRAM(),
		Bus:          p.Bus,
		Self:         p.IGP,
		EnableDirect: cfg.DirectAccess,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	return &Board{Device: dev, Location: p.IGP, Sim: p}, nil
}

func openSysfs(cfg config.Config, log *slog.Logger) (*Board, error) {
	bus := pci.NewSysfsBus(sysfsRoot)

	loc, err := locate(bus, cfg.Device)
	if err != nil {
		return nil, err
	}
	log.Debug("using display controller", "device", loc.String(), "path", bus.Path(loc))

	b := &Board{Location: loc}

	mmio, err := vgaio.MapResource(bus.ResourcePath(loc, 1), vgaio.ApertureSize)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, mmio)

	// only the legacy planes are touched through the framebuffer
	fb, err := vgaio.MapResource(bus.ResourcePath(loc, 0), 4*chrome.PlaneSize)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, fb)

	b.Device, err = chrome.Attach(chrome.Config{
		Registers:    mmio,
		Framebuffer:  fb.Bytes(),
		Bus:          bus,
		Self:         loc,
		EnableDirect: cfg.DirectAccess,
		Logger:       log,
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// locate parses addr, or finds the first supported chrome when it is empty.
func locate(bus pci.Bus, addr string) (pci.Location, error) {
	if addr != "" {
		return pci.ParseLocation(addr)
	}
	for _, chip := range chrome.Chips() {
		loc, err := bus.Find(chrome.VendorVIA, chip.DeviceID())
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, pci.ErrNoDevice) {
			return pci.Location{}, err
		}
	}
	return pci.Location{}, ErrNoChrome
}

// Request builds the mode request cfg names.
func Request(cfg config.ModeConfig) (chrome.ModeRequest, error) {
	m, err := modedb.Lookup(cfg.Name)
	if err != nil {
		return chrome.ModeRequest{}, err
	}
	return m.Request(cfg.BPP, cfg.VirtualWidth, cfg.VirtualHeight), nil
}

// Close detaches the device and releases the mappings.
func (b *Board) Close() error {
	var errs []error
	if b.Device != nil {
		if err := b.Device.Detach(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mapping: %w", err))
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
