package pci

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want Location
		ok   bool
	}{
		{"0000:01:00.0", Location{Bus: 1}, true},
		{"01:00.0", Location{Bus: 1}, true},
		{"0001:00:1f.3", Location{Domain: 1, Device: 0x1f, Function: 3}, true},
		{"00:00.8", Location{}, false},
		{"garbage", Location{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidBDF)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
	require.Equal(t, "0000:00:03.0", Slot(3, 0).String())
}

func TestHostBridgeReadOnlyIdentity(t *testing.T) {
	hb := NewHostBridge()
	loc := Slot(0, 0)
	hb.AddDevice(loc, 0x1106, 0x3123, 0x02, 0x0600)

	fn, err := hb.Function(loc)
	require.NoError(t, err)

	require.NoError(t, fn.WriteConfig(ConfigVendorID, 4, 0xdeadbeef))
	vendor, device, err := Identity(fn)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1106), vendor)
	require.Equal(t, uint16(0x3123), device)

	require.NoError(t, fn.WriteConfig(0xE0, 2, 0x1235))
	v, err := Read16(fn, 0xE0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1235), v)
	b, err := Read8(fn, 0xE1)
	require.NoError(t, err)
	require.Equal(t, uint8(0x12), b)

	hb.SetReadOnlyRange(loc, 0xE0, 0xE0)
	require.NoError(t, fn.WriteConfig(0xE0, 1, 0x00))
	b, err = Read8(fn, 0xE0)
	require.NoError(t, err)
	require.Equal(t, uint8(0x35), b)

	require.NoError(t, hb.Poke(loc, 0xE0, 1, 0x77))
	b, err = Read8(fn, 0xE0)
	require.NoError(t, err)
	require.Equal(t, uint8(0x77), b)
}

func TestHostBridgeFind(t *testing.T) {
	hb := NewHostBridge()
	hb.AddDevice(Slot(0, 0), 0x1106, 0x0204, 0, 0x0600)
	hb.AddDevice(Slot(0x18, 2), 0x1022, 0x1102, 0, 0x0600)

	loc, err := hb.Find(0x1022, 0x1102)
	require.NoError(t, err)
	require.Equal(t, Slot(0x18, 2), loc)

	_, err = hb.Find(0x8086, 0x1237)
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = hb.Function(Slot(1, 0))
	require.True(t, errors.Is(err, ErrNoDevice))
}

func TestConfigAccessChecks(t *testing.T) {
	hb := NewHostBridge()
	hb.AddDevice(Slot(0, 0), 0x1106, 0x3123, 0, 0x0600)
	fn, err := hb.Function(Slot(0, 0))
	require.NoError(t, err)

	_, err = fn.ReadConfig(0xE1, 2)
	require.ErrorIs(t, err, ErrBadAccess)
	_, err = fn.ReadConfig(0xFE, 4)
	require.ErrorIs(t, err, ErrBadAccess)
	_, err = fn.ReadConfig(0x10, 3)
	require.ErrorIs(t, err, ErrBadAccess)
}

func TestMemoryBAR(t *testing.T) {
	hb := NewHostBridge()
	loc := Slot(1, 0)
	hb.AddDevice(loc, 0x1106, 0x3122, 0, 0x0300)
	require.NoError(t, hb.Poke(loc, ConfigBAR0, 4, 0xD0000008))
	require.NoError(t, hb.Poke(loc, ConfigBAR0+4, 4, 0xDD000000))
	require.NoError(t, hb.Poke(loc, ConfigBAR0+8, 4, 0x0000E001))

	fn, err := hb.Function(loc)
	require.NoError(t, err)

	base, err := MemoryBAR(fn, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0xD0000000), base)

	base, err = MemoryBAR(fn, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0xDD000000), base)

	_, err = MemoryBAR(fn, 2)
	require.ErrorIs(t, err, ErrBadAccess)
}

func writeSysfsFunction(t *testing.T, root, name string, vendor, device string, config []byte) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor"), []byte(vendor+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device"), []byte(device+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), config, 0o644))
}

func TestSysfsBus(t *testing.T) {
	root := t.TempDir()

	host := make([]byte, ConfigSize)
	host[0], host[1], host[2], host[3] = 0x06, 0x11, 0x23, 0x31
	host[0xE1] = 0x30
	writeSysfsFunction(t, root, "0000:00:00.0", "0x1106", "0x3123", host)
	writeSysfsFunction(t, root, "0000:01:00.0", "0x1106", "0x3122", make([]byte, ConfigSize))

	bus := NewSysfsBus(root)

	loc, err := bus.Find(0x1106, 0x3122)
	require.NoError(t, err)
	require.Equal(t, Location{Bus: 1}, loc)
	require.Equal(t, filepath.Join(root, "0000:01:00.0", "resource1"), bus.ResourcePath(loc, 1))

	fn, err := bus.Function(Slot(0, 0))
	require.NoError(t, err)
	vendor, device, err := Identity(fn)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1106), vendor)
	require.Equal(t, uint16(0x3123), device)

	b, err := Read8(fn, 0xE1)
	require.NoError(t, err)
	require.Equal(t, uint8(0x30), b)

	require.NoError(t, fn.WriteConfig(0xE0, 4, 0xAABBCCDD))
	v, err := Read32(fn, 0xE0)
	require.NoError(t, err)
	require.Equal(t, uint32(0xAABBCCDD), v)

	_, err = bus.Function(Slot(2, 0))
	require.ErrorIs(t, err, ErrNoDevice)
	_, err = bus.Find(0x1022, 0x1102)
	require.ErrorIs(t, err, ErrNoDevice)
}
