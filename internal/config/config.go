// Package config loads the chromefb YAML configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFilename = "chromefb.yaml"
	DefaultMode     = "640x480@60"
	DefaultBPP      = 16
)

// Config selects the display and the mode to program on it.
type Config struct {
	// Device is the PCI address of the IGP. Empty means the first VIA
	// display controller found.
	Device string `yaml:"device,omitempty"`
	// Simulate names a simulated platform preset. Empty means real hardware.
	Simulate     string `yaml:"simulate,omitempty"`
	DirectAccess bool   `yaml:"direct_access"`
	LogLevel     string `yaml:"log_level,omitempty"`

	Mode ModeConfig `yaml:"mode"`
}

type ModeConfig struct {
	Name          string `yaml:"name"`
	BPP           uint32 `yaml:"bpp"`
	VirtualWidth  uint32 `yaml:"virtual_width,omitempty"`
	VirtualHeight uint32 `yaml:"virtual_height,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	c := Config{DirectAccess: true}
	c.normalize()
	return c
}

func (c *Config) normalize() {
	c.Device = strings.TrimSpace(c.Device)
	c.Simulate = strings.ToLower(strings.TrimSpace(c.Simulate))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Mode.Name == "" {
		c.Mode.Name = DefaultMode
	}
	if c.Mode.BPP == 0 {
		c.Mode.BPP = DefaultBPP
	}
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Parse decodes a configuration document. Absent keys keep their defaults.
func Parse(data []byte) (Config, error) {
	c := Config{DirectAccess: true}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	if _, err := c.Level(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Write stores c at path.
func Write(path string, c Config) error {
	c.normalize()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
