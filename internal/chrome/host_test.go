package chrome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange/chromefb/internal/pci"
	"github.com/tinyrange/chromefb/internal/vgasim"
)

func TestDiscoverPresets(t *testing.T) {
	tests := []struct {
		preset string
		want   PlatformInfo
	}{
		{"cle266", PlatformInfo{
			Host: HostCLE266, Revision: 0x02, RAM: RAMDDR266,
			FramebufferSize: 16 << 20, FramebufferBase: vgasim.DefaultFramebufferBAR,
		}},
		{"km400", PlatformInfo{
			Host: HostKM400, RAM: RAMDDR333,
			FramebufferSize: 32 << 20, FramebufferBase: 0xE0000000, Direct: true,
		}},
		{"km400a", PlatformInfo{
			Host: HostKM400, Revision: 0x80, RAM: RAMDDR266,
			FramebufferSize: 64 << 20, FramebufferBase: vgasim.DefaultFramebufferBAR,
		}},
		{"p4m800", PlatformInfo{
			Host: HostP4M800, RAM: RAMDDR333,
			FramebufferSize: 16 << 20, FramebufferBase: vgasim.DefaultFramebufferBAR,
		}},
		{"k8m800", PlatformInfo{
			Host: HostK8M800, RAM: RAMDDR400,
			FramebufferSize: 32 << 20, FramebufferBase: 0x0E000000, Direct: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			p, err := vgasim.NewPlatform(tt.preset)
			require.NoError(t, err)

			info, err := Discover(p.Bus, p.IGP, false, testLogger())
			require.NoError(t, err)
			require.Equal(t, tt.want, info)
		})
	}
}

func TestDiscoverEnablesDirectAccess(t *testing.T) {
	p, err := vgasim.NewPlatform("cle266")
	require.NoError(t, err)

	info, err := Discover(p.Bus, p.IGP, true, testLogger())
	require.NoError(t, err)
	require.True(t, info.Direct)
	require.Equal(t, uint64(vgasim.DefaultFramebufferBAR), info.FramebufferBase)

	host, err := p.Bus.Function(vgasim.HostLocation)
	require.NoError(t, err)
	v, err := pci.Read32(host, 0xE0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x4D01), v)
}

func TestDiscoverNoWindowOnP4M800(t *testing.T) {
	p, err := vgasim.NewPlatform("p4m800")
	require.NoError(t, err)

	info, err := Discover(p.Bus, p.IGP, true, testLogger())
	require.NoError(t, err)
	require.False(t, info.Direct)

	ram, err := p.Bus.Function(vgasim.RAMCtrlLocation)
	require.NoError(t, err)
	v, err := pci.Read16(ram, 0xA0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x4000), v)
}

func TestDiscoverUnknownHost(t *testing.T) {
	bus := pci.NewHostBridge()
	_, err := Discover(bus, vgasim.IGPLocation, false, testLogger())
	require.ErrorIs(t, err, ErrUnknownHostBridge)

	bus.AddDevice(vgasim.HostLocation, 0x8086, 0x3580, 0, 0x0600)
	_, err = Discover(bus, vgasim.IGPLocation, false, testLogger())
	require.ErrorIs(t, err, ErrUnknownHostBridge)

	bus.AddDevice(vgasim.HostLocation, VendorVIA, 0x3189, 0, 0x0600)
	_, err = Discover(bus, vgasim.IGPLocation, false, testLogger())
	require.ErrorIs(t, err, ErrUnknownHostBridge)
	require.Contains(t, err.Error(), "0x3189")
}

func TestDiscoverZeroFramebuffer(t *testing.T) {
	p, err := vgasim.NewPlatform("km400")
	require.NoError(t, err)
	require.NoError(t, p.Bus.Poke(vgasim.HostLocation, 0xE0, 2, 0x0001))

	_, err = Discover(p.Bus, p.IGP, false, testLogger())
	require.ErrorIs(t, err, ErrZeroFramebufferSize)
}

func TestDiscoverMissingRAMController(t *testing.T) {
	bus := pci.NewHostBridge()
	bus.AddDevice(vgasim.HostLocation, VendorVIA, uint16(HostK8M800), 0, 0x0600)
	bus.AddDevice(vgasim.RAMCtrlLocation, VendorVIA, 0x3204, 0, 0x0600)
	require.NoError(t, bus.Poke(vgasim.RAMCtrlLocation, 0xA0, 2, 0x5000))

	_, err := Discover(bus, vgasim.IGPLocation, false, testLogger())
	require.ErrorIs(t, err, ErrRAMControllerNotFound)

	bus = pci.NewHostBridge()
	bus.AddDevice(vgasim.HostLocation, VendorVIA, uint16(HostP4M800), 0, 0x0600)
	_, err = Discover(bus, vgasim.IGPLocation, false, testLogger())
	require.ErrorIs(t, err, ErrRAMControllerNotFound)
}

func TestDiscoverUnclassifiedRAM(t *testing.T) {
	p, err := vgasim.NewPlatform("cle266")
	require.NoError(t, err)
	// 66MHz FSB strap has no table entry
	require.NoError(t, p.Bus.Poke(vgasim.HostLocation, 0x54, 1, 0x00))

	info, err := Discover(p.Bus, p.IGP, false, testLogger())
	require.NoError(t, err)
	require.Equal(t, RAMUnknown, info.RAM)
	require.Equal(t, "Unknown", info.RAM.String())
	require.Equal(t, uint64(16<<20), info.FramebufferSize)
}

func TestRAMClassifiers(t *testing.T) {
	p, err := vgasim.NewPlatform("km400a")
	require.NoError(t, err)
	host, err := p.Bus.Function(vgasim.HostLocation)
	require.NoError(t, err)

	// without the extended ratio bit the KM400A reads as 200MHz FSB 1:1
	require.NoError(t, p.Bus.Poke(vgasim.HostLocation, 0x67, 1, 0x00))
	require.NoError(t, p.Bus.Poke(vgasim.HostLocation, 0x69, 1, 0x00))
	ram, err := km400RAM(host, 0x80)
	require.NoError(t, err)
	require.Equal(t, RAMDDR400, ram)

	// the same straps on an early KM400 use the other table
	ram, err = km400RAM(host, 0x00)
	require.NoError(t, err)
	require.Equal(t, RAMDDR333, ram)

	require.NoError(t, p.Bus.Poke(vgasim.HostLocation, 0x69, 1, 0x40))
	ram, err = km400RAM(host, 0x00)
	require.NoError(t, err)
	require.Equal(t, RAMUnknown, ram)

	k8, err := vgasim.NewPlatform("k8m800")
	require.NoError(t, err)
	for v, want := range map[uint32]RAMClass{0x00: RAMDDR200, 0x20: RAMDDR266, 0x50: RAMDDR333, 0x70: RAMDDR400, 0x30: RAMUnknown} {
		require.NoError(t, k8.Bus.Poke(vgasim.K8DRAMLocation, 0x96, 1, v))
		got, err := k8m800RAM(k8.Bus)
		require.NoError(t, err)
		require.Equal(t, want, got, "0x%02X", v)
	}
}
