package chrome

import (
	"fmt"

	"github.com/tinyrange/chromefb/internal/pll"
)

// VendorVIA is the PCI vendor ID of every chrome and host bridge handled here.
const VendorVIA = 0x1106

// ChipVariant identifies the chrome generation. It decides the clock
// generator, its register layout and the panning limit.
type ChipVariant int

const (
	// VT3122 is the CastleRock core of the CLE266.
	VT3122 ChipVariant = iota
	// VT3108 is the UniChrome Pro B of the K8M800 and K8N800.
	VT3108
	// VT7205 is the UniChrome of the KM400, KN400 and P4M800.
	VT7205
)

// chipInfo is one row of the variant strategy table.
type chipInfo struct {
	deviceID uint16
	name     string
	family   pll.Family
	// largest start address offset the CRTC can pan to
	panLimit uint64
}

var chips = map[ChipVariant]chipInfo{
	VT3122: {0x3122, "VT3122 (CastleRock)", pll.FamilyCLE266, 0x1FFFFFF},
	VT3108: {0x3108, "VT3108 (UniChrome Pro)", pll.FamilyPro, 0x7FFFFFF},
	VT7205: {0x7205, "VT7205 (UniChrome)", pll.FamilyCLE266, 0x7FFFFFF},
}

// unsupportedChips are chromes the driver recognises but cannot program.
var unsupportedChips = map[uint16]string{
	0x3118: "VT3118 (UniChrome Pro A)",
	0x3344: "VT3344 (UniChrome Pro)",
	0x3157: "VT3157 (UniChrome Pro)",
	0x3230: "VT3230 (Chrome 9)",
	0x3343: "VT3343 (UniChrome Pro)",
	0x3371: "VT3371 (Chrome 9)",
}

// Chips lists the supported variants.
func Chips() []ChipVariant {
	return []ChipVariant{VT3122, VT3108, VT7205}
}

// ChipFromDeviceID maps a PCI device ID to its variant.
func ChipFromDeviceID(id uint16) (ChipVariant, error) {
	for v, info := range chips {
		if info.deviceID == id {
			return v, nil
		}
	}
	return 0, &ChipError{DeviceID: id, Name: unsupportedChips[id]}
}

func (v ChipVariant) info() (chipInfo, error) {
	info, ok := chips[v]
	if !ok {
		return chipInfo{}, fmt.Errorf("%w: variant %d", ErrUnsupportedChip, int(v))
	}
	return info, nil
}

func (v ChipVariant) String() string {
	if info, ok := chips[v]; ok {
		return info.name
	}
	return fmt.Sprintf("ChipVariant(%d)", int(v))
}

// DeviceID returns the PCI device ID of v.
func (v ChipVariant) DeviceID() uint16 {
	return chips[v].deviceID
}

// Family returns the clock generator of v.
func (v ChipVariant) Family() pll.Family {
	return chips[v].family
}

// PanLimit returns the largest start address offset v can scan out from.
func (v ChipVariant) PanLimit() uint64 {
	return chips[v].panLimit
}
