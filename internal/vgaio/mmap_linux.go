//go:build linux

package vgaio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a shared mapping of a PCI resource file such as
// /sys/bus/pci/devices/0000:01:00.0/resource1.
type Mapping struct {
	file *os.File
	mem  []byte
}

// MapResource maps the first size bytes of the resource file at path.
func MapResource(path string, size int) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open resource %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap resource %s: %w", path, err)
	}

	return &Mapping{file: f, mem: mem}, nil
}

// Read8 implements Aperture.
func (m *Mapping) Read8(offset uint32) uint8 {
	return m.mem[offset]
}

// Write8 implements Aperture.
func (m *Mapping) Write8(offset uint32, value uint8) {
	m.mem[offset] = value
}

// Bytes exposes the mapping, for framebuffer resources.
func (m *Mapping) Bytes() []byte {
	return m.mem
}

// Close unmaps the resource.
func (m *Mapping) Close() error {
	if m.mem != nil {
		if err := unix.Munmap(m.mem); err != nil {
			return fmt.Errorf("munmap resource: %w", err)
		}
		m.mem = nil
	}
	return m.file.Close()
}

var _ Aperture = (*Mapping)(nil)
