//go:build !linux

package vgaio

import (
	"errors"
	"fmt"
	"runtime"
)

// Mapping is only available on Linux.
type Mapping struct{}

// MapResource always fails outside Linux: PCI resources are mapped through sysfs.
func MapResource(path string, size int) (*Mapping, error) {
	return nil, fmt.Errorf("map %s: %w", path, errors.ErrUnsupported)
}

func (m *Mapping) Read8(offset uint32) uint8 { return 0xFF }

func (m *Mapping) Write8(offset uint32, value uint8) {}

func (m *Mapping) Bytes() []byte { return nil }

func (m *Mapping) Close() error {
	return fmt.Errorf("resource mapping unsupported on %s", runtime.GOOS)
}

var _ Aperture = (*Mapping)(nil)
