package chrome

import (
	"errors"
	"fmt"
)

// Sentinel errors. Validation errors are returned before any register is
// touched; discovery errors abort Attach.
var (
	ErrUnsupportedDepth      = errors.New("unsupported bits per pixel")
	ErrRangeExceeded         = errors.New("timing out of range")
	ErrClockOutOfRange       = errors.New("dot clock out of range")
	ErrRotationUnsupported   = errors.New("rotation is not supported")
	ErrPanningLimitExceeded  = errors.New("virtual resolution exceeds panning limit")
	ErrFramebufferTooSmall   = errors.New("not enough framebuffer memory")
	ErrUnsupportedChip       = errors.New("unsupported chrome variant")
	ErrUnknownHostBridge     = errors.New("unknown host bridge")
	ErrRAMControllerNotFound = errors.New("ram controller not found")
	ErrZeroFramebufferSize   = errors.New("ram controller reserves no framebuffer memory")
	ErrInvalidOwnershipState = errors.New("invalid ownership state")
	ErrPaletteRange          = errors.New("palette range out of bounds")
	ErrInvalidBlank          = errors.New("invalid blank level")
	ErrPanOutOfRange         = errors.New("pan offset outside the virtual buffer")
	ErrNoMode                = errors.New("no mode has been set")
)

// Axis names the timing direction a RangeError refers to.
type Axis string

const (
	Horizontal Axis = "horizontal"
	Vertical   Axis = "vertical"
)

// RangeError reports one timing quantity beyond its hardware limit.
type RangeError struct {
	Axis     Axis
	Quantity string // total, display, blank start, blank span, sync start, sync span
	Value    int
	Limit    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %s %d exceeds %d", e.Axis, e.Quantity, e.Value, e.Limit)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRangeExceeded
}

// ChipError reports a PCI device ID the driver cannot program.
type ChipError struct {
	DeviceID uint16
	Name     string // empty when the ID is not a chrome at all
}

func (e *ChipError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (0x%04X) is not supported", e.Name, e.DeviceID)
	}
	return fmt.Sprintf("unknown chrome 0x%04X", e.DeviceID)
}

func (e *ChipError) Is(target error) bool {
	return target == ErrUnsupportedChip
}
