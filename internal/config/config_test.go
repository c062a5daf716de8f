package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/melody/sdk/contracts"
)

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRate != 44100 || cfg.Output != "speaker" || cfg.Volume != 0.8 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
output: "null"
volume: 0.5
instruments: [synth]
recording_tail: 250ms
soundfont:
  path: /tmp/piano.sf2
  load_timeout: 1s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output != "null" || cfg.Volume != 0.5 || len(cfg.Instruments) != 1 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SampleRate != 44100 {
		t.Fatalf("unset field lost its default: %d", cfg.SampleRate)
	}
	if cfg.RecordingTail != 250*time.Millisecond || cfg.SoundFont.LoadTimeout != time.Second {
		t.Fatalf("durations = %v, %v", cfg.RecordingTail, cfg.SoundFont.LoadTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"volume above one", func(c *Config) { c.Volume = 1.2 }},
		{"unknown output", func(c *Config) { c.Output = "tape" }},
		{"unknown instrument", func(c *Config) { c.Instruments = []string{"organ"} }},
		{"midi out without section", func(c *Config) { c.Instruments = []string{"midi-out"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Volume = 0.3
	cfg.MIDIOut = &MIDIOutConfig{Port: "IAC"}
	cfg.Instruments = []string{"midi-out", "synth"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Volume != 0.3 || got.MIDIOut == nil || got.MIDIOut.Port != "IAC" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Output = "null"
	var opts contracts.ClientOptions
	for _, o := range cfg.Options() {
		o(&opts)
	}
	if opts.Output != contracts.NullOutput || *opts.Volume != 0.8 || opts.LogLevel != contracts.WarnLevel {
		t.Fatalf("options = %+v", opts)
	}
	if len(opts.Instruments) != 2 || opts.MIDIOut != nil {
		t.Fatalf("instruments %v midi %v", opts.Instruments, opts.MIDIOut)
	}
}
