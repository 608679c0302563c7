package pci

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where Linux publishes PCI functions.
const DefaultSysfsRoot = "/sys/bus/pci/devices"

// SysfsBus accesses configuration space through Linux sysfs.
type SysfsBus struct {
	Root string
}

// NewSysfsBus returns a bus rooted at root, or DefaultSysfsRoot when empty.
func NewSysfsBus(root string) *SysfsBus {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsBus{Root: root}
}

// Path returns the sysfs directory of loc.
func (b *SysfsBus) Path(loc Location) string {
	return filepath.Join(b.Root, loc.String())
}

// Function implements Bus.
func (b *SysfsBus) Function(loc Location) (ConfigSpace, error) {
	path := filepath.Join(b.Path(loc), "config")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoDevice, loc)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &sysfsFunction{path: path}, nil
}

// Find implements Bus. Functions are searched in address order.
func (b *SysfsBus) Find(vendor, device uint16) (Location, error) {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		return Location{}, fmt.Errorf("read %s: %w", b.Root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		loc, err := ParseLocation(name)
		if err != nil {
			continue
		}
		v, err := readHexFile(filepath.Join(b.Root, name, "vendor"))
		if err != nil || uint16(v) != vendor {
			continue
		}
		d, err := readHexFile(filepath.Join(b.Root, name, "device"))
		if err != nil || uint16(d) != device {
			continue
		}
		return loc, nil
	}
	return Location{}, fmt.Errorf("%w %04x:%04x", ErrNoDevice, vendor, device)
}

// ResourcePath returns the mappable file for BAR index of loc.
func (b *SysfsBus) ResourcePath(loc Location, index int) string {
	return filepath.Join(b.Path(loc), "resource"+strconv.Itoa(index))
}

func readHexFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	return strconv.ParseUint(s, 16, 32)
}

type sysfsFunction struct {
	path string
}

func (f *sysfsFunction) ReadConfig(offset uint16, size uint8) (uint32, error) {
	if err := checkAccess(offset, size); err != nil {
		return 0, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	buf := make([]byte, size)
	if _, err := file.ReadAt(buf, int64(offset)); err != nil {
		return 0, fmt.Errorf("read %s at %#x: %w", f.path, offset, err)
	}
	value := uint32(0)
	for i, b := range buf {
		value |= uint32(b) << (8 * i)
	}
	return value, nil
}

func (f *sysfsFunction) WriteConfig(offset uint16, size uint8, value uint32) error {
	if err := checkAccess(offset, size); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(value >> (8 * i))
	}
	if _, err := file.WriteAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("write %s at %#x: %w", f.path, offset, err)
	}
	return nil
}

var (
	_ Bus         = (*SysfsBus)(nil)
	_ ConfigSpace = (*sysfsFunction)(nil)
)
