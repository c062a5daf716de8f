// Package config loads the CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/leandrodaf/melody/sdk/contracts"
	"gopkg.in/yaml.v3"
)

// SoundFontConfig locates the sampled instrument.
type SoundFontConfig struct {
	Path        string        `yaml:"path,omitempty"`
	Program     uint8         `yaml:"program,omitempty"`
	LoadTimeout time.Duration `yaml:"load_timeout,omitempty"`
}

// MIDIOutConfig selects a MIDI output port for the midi-out instrument.
type MIDIOutConfig struct {
	Port     string `yaml:"port,omitempty"`
	DeviceID int    `yaml:"device_id,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	LogLevel      string          `yaml:"log_level,omitempty"`
	LogFile       string          `yaml:"log_file,omitempty"`
	SampleRate    int             `yaml:"sample_rate"`
	Output        string          `yaml:"output"`
	Volume        float64         `yaml:"volume"`
	Instruments   []string        `yaml:"instruments"`
	SoundFont     SoundFontConfig `yaml:"soundfont,omitempty"`
	MIDIOut       *MIDIOutConfig  `yaml:"midi_out,omitempty"`
	RecordingTail time.Duration   `yaml:"recording_tail"`
	Tempo         int             `yaml:"tempo"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		LogLevel:      "warn",
		SampleRate:    44100,
		Output:        string(contracts.SpeakerOutput),
		Volume:        0.8,
		Instruments:   []string{string(contracts.SamplerInstrument), string(contracts.SynthInstrument)},
		SoundFont:     SoundFontConfig{LoadTimeout: 3 * time.Second},
		RecordingTail: 1500 * time.Millisecond,
		Tempo:         120,
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "melody", "config.yaml"), nil
}

// Load reads path, or the default location when path is empty. A missing
// file yields the defaults; fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every field the player depends on.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if math.IsNaN(c.Volume) || c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be within [0,1], got %v", c.Volume)
	}
	if c.Tempo < 0 {
		return fmt.Errorf("tempo must be positive, got %d", c.Tempo)
	}
	switch contracts.OutputKind(c.Output) {
	case contracts.SpeakerOutput, contracts.NullOutput:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	for _, name := range c.Instruments {
		switch contracts.InstrumentKind(name) {
		case contracts.SamplerInstrument, contracts.SynthInstrument:
		case contracts.MIDIOutInstrument:
			if c.MIDIOut == nil {
				return errors.New("instrument midi-out needs a midi_out section")
			}
		default:
			return fmt.Errorf("unknown instrument %q", name)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level maps log_level onto the logger levels.
func (c *Config) Level() (contracts.LogLevel, error) {
	switch c.LogLevel {
	case "debug":
		return contracts.DebugLevel, nil
	case "", "info":
		return contracts.InfoLevel, nil
	case "warn":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}

// Options converts the file into player options.
func (c *Config) Options() []contracts.Option {
	level, _ := c.Level()
	kinds := make([]contracts.InstrumentKind, len(c.Instruments))
	for i, name := range c.Instruments {
		kinds[i] = contracts.InstrumentKind(name)
	}
	opts := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithSampleRate(c.SampleRate),
		contracts.WithOutput(contracts.OutputKind(c.Output)),
		contracts.WithVolume(c.Volume),
		contracts.WithInstruments(kinds...),
		contracts.WithSoundFont(contracts.SoundFontConfig{
			Path:        c.SoundFont.Path,
			Program:     c.SoundFont.Program,
			LoadTimeout: c.SoundFont.LoadTimeout,
		}),
		contracts.WithRecordingTail(c.RecordingTail),
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	if c.MIDIOut != nil {
		opts = append(opts, contracts.WithMIDIOut(contracts.MIDIOutConfig{
			PortName: c.MIDIOut.Port,
			DeviceID: c.MIDIOut.DeviceID,
		}))
	}
	return opts
}
