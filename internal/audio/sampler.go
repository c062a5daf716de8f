package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

const (
	samplerChannel     = 0
	defaultLoadTimeout = 3 * time.Second
)

// ErrNoSoundFont is returned by the sampler provider when no SoundFont path is configured.
var ErrNoSoundFont = errors.New("no soundfont configured")

// Sampler plays notes from a SoundFont through meltysynth.
type Sampler struct {
	synth       *meltysynth.Synthesizer
	left, right []float32
}

// LoadSampler reads and parses a SoundFont within cfg.LoadTimeout. A load that
// outlives the deadline is abandoned and reported as an error so the caller
// can fall back to the synth.
func LoadSampler(ctx context.Context, cfg contracts.SoundFontConfig, sampleRate int) (*Sampler, error) {
	if cfg.Path == "" {
		return nil, ErrNoSoundFont
	}
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		s   *Sampler
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := loadSampler(cfg, sampleRate)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		return r.s, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("loading soundfont %s: %w", cfg.Path, ctx.Err())
	}
}

func loadSampler(cfg contracts.SoundFontConfig, sampleRate int) (*Sampler, error) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing soundfont %s: %w", cfg.Path, err)
	}
	synth, err := meltysynth.NewSynthesizer(sf, meltysynth.NewSynthesizerSettings(int32(sampleRate)))
	if err != nil {
		return nil, err
	}
	synth.ProcessMidiMessage(samplerChannel, int32(contracts.ProgramChange), int32(cfg.Program), 0)
	return &Sampler{synth: synth}, nil
}

// SamplerProvider adapts LoadSampler to the fallback chain.
func SamplerProvider(cfg contracts.SoundFontConfig, sampleRate int) Provider {
	return Provider{
		Kind: contracts.SamplerInstrument,
		Load: func(ctx context.Context) (Instrument, error) {
			s, err := LoadSampler(ctx, cfg, sampleRate)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func (s *Sampler) Name() string { return string(contracts.SamplerInstrument) }

func (s *Sampler) NoteOn(key uint8, velocity float64) {
	s.synth.NoteOn(samplerChannel, int32(key), int32(toMIDIVelocity(velocity)))
}

func (s *Sampler) NoteOff(key uint8) {
	s.synth.NoteOff(samplerChannel, int32(key))
}

func (s *Sampler) Silence() {
	s.synth.ProcessMidiMessage(samplerChannel, int32(contracts.ControlChange), int32(contracts.ControllerAllSoundOff), 0)
	s.synth.ProcessMidiMessage(samplerChannel, int32(contracts.ControlChange), int32(contracts.ControllerAllNotesOff), 0)
}

func (s *Sampler) Stream(samples [][2]float64) (int, bool) {
	n := len(samples)
	if cap(s.left) < n {
		s.left = make([]float32, n)
		s.right = make([]float32, n)
	}
	left, right := s.left[:n], s.right[:n]
	s.synth.Render(left, right)
	for i := range samples {
		samples[i][0] = float64(left[i])
		samples[i][1] = float64(right[i])
	}
	return n, true
}

func (s *Sampler) Err() error { return nil }

func (s *Sampler) Close() error {
	s.synth.NoteOffAll(true)
	return nil
}

// toMIDIVelocity maps 0..1 onto 1..127; a note that was asked for always sounds.
func toMIDIVelocity(v float64) uint8 {
	if math.IsNaN(v) {
		return 1
	}
	n := math.Round(math.Max(0, math.Min(1, v)) * 127)
	if n < 1 {
		n = 1
	}
	return uint8(n)
}
