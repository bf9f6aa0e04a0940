// Package config loads and saves the YAML panel description: settle
// delays, transport parameters, control line names, the negotiated display
// timing and the per-phase command streams (as hex strings).
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"panelseq/internal/panel"
)

// DelaysConfig holds the per-panel settle delays in milliseconds.
type DelaysConfig struct {
	PowerUpMS   int `yaml:"power_up_ms" validate:"gte=0"`
	PrepareMS   int `yaml:"prepare_ms" validate:"gte=0"`
	EnableMS    int `yaml:"enable_ms" validate:"gte=0"`
	DisableMS   int `yaml:"disable_ms" validate:"gte=0"`
	UnprepareMS int `yaml:"unprepare_ms" validate:"gte=0"`
	PowerDownMS int `yaml:"power_down_ms" validate:"gte=0"`
}

// TwoWireConfig describes the register-style two-wire bus device.
type TwoWireConfig struct {
	// Bus is the periph.io bus identifier ("" for the platform default).
	Bus         string `yaml:"bus"`
	Address     uint16 `yaml:"address" validate:"lte=127"`
	FrequencyHz int    `yaml:"frequency_hz" validate:"gte=0"`
}

// SerialConfig describes the 3-wire synchronous serial device.
type SerialConfig struct {
	// Port is the periph.io SPI port name ("" for the platform default).
	Port        string `yaml:"port"`
	FrequencyHz int    `yaml:"frequency_hz" validate:"gte=0"`
	// FramingBits selects 9-bit (marker) or plain 8-bit framing.
	FramingBits int `yaml:"framing_bits" validate:"oneof=8 9"`
}

// CommandIfaceConfig describes the command-interface link.
type CommandIfaceConfig struct {
	Lanes int `yaml:"lanes" validate:"min=1,max=4"`
}

// LinesConfig names the control lines by their periph.io GPIO names. Empty
// names leave the line unwired.
type LinesConfig struct {
	Reset         string `yaml:"reset"`
	PowerEnable   string `yaml:"power_enable"`
	PrepareEnable string `yaml:"prepare_enable"`
}

// StreamSet holds the three per-transport command streams of one phase as
// hex strings (whitespace allowed between bytes).
type StreamSet struct {
	TwoWire      string `yaml:"two_wire" validate:"omitempty,hexstream"`
	CommandIface string `yaml:"command_interface" validate:"omitempty,hexstream"`
	Serial       string `yaml:"serial" validate:"omitempty,hexstream"`
}

// Streams decodes the set into raw bytes.
func (s StreamSet) Streams() (panel.Streams, error) {
	tw, err := DecodeHexStream(s.TwoWire)
	if err != nil {
		return panel.Streams{}, fmt.Errorf("two_wire: %w", err)
	}
	ci, err := DecodeHexStream(s.CommandIface)
	if err != nil {
		return panel.Streams{}, fmt.Errorf("command_interface: %w", err)
	}
	se, err := DecodeHexStream(s.Serial)
	if err != nil {
		return panel.Streams{}, fmt.Errorf("serial: %w", err)
	}
	return panel.Streams{TwoWire: tw, CommandIface: ci, Serial: se}, nil
}

// Config is the top-level panel description.
type Config struct {
	// Name is a human-friendly panel label used in logs.
	Name string `yaml:"name"`

	Delays DelaysConfig `yaml:"delays"`

	// Transports; a nil section means the transport is absent and its
	// command streams are no-ops.
	TwoWire      *TwoWireConfig      `yaml:"two_wire,omitempty"`
	Serial       *SerialConfig       `yaml:"serial,omitempty"`
	CommandIface *CommandIfaceConfig `yaml:"command_interface,omitempty"`

	Lines LinesConfig `yaml:"lines"`

	Mode panel.Mode `yaml:"mode"`

	Init    StreamSet `yaml:"init"`
	Enable  StreamSet `yaml:"enable"`
	Disable StreamSet `yaml:"disable"`
}

// DefaultConfig returns an in-memory default configuration: no transports,
// no lines, conservative delays.
func DefaultConfig() *Config {
	return &Config{
		Name: "panel",
		Delays: DelaysConfig{
			PowerUpMS:   10,
			PrepareMS:   120,
			EnableMS:    20,
			DisableMS:   20,
			UnprepareMS: 120,
			PowerDownMS: 10,
		},
	}
}

// Normalize fills in missing values so partially-filled configs behave.
func (c *Config) Normalize() {
	if c.Name == "" {
		c.Name = "panel"
	}
	if c.Serial != nil && c.Serial.FramingBits == 0 {
		c.Serial.FramingBits = 9
	}
	if c.CommandIface != nil && c.CommandIface.Lanes == 0 {
		c.CommandIface.Lanes = 1
	}
}

// DecodeHexStream turns a hex string (whitespace-separated or contiguous)
// into raw bytes. An empty string decodes to nil.
func DecodeHexStream(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex stream: %w", err)
	}
	return b, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// RegisterValidation only fails for an empty tag name.
	_ = v.RegisterValidation("hexstream", func(fl validator.FieldLevel) bool {
		_, err := DecodeHexStream(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks ranges and stream well-formedness.
func (c *Config) Validate() error {
	return newValidator().Struct(c)
}

// Load loads a configuration from the given YAML path. A missing file is a
// first run: a default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(dir, ".panelseq-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
