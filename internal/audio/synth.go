package audio

import (
	"context"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/pitch"
)

const (
	synthAttack  = 5 * time.Millisecond
	synthDecay   = 400 * time.Millisecond // time constant of the post-attack decay
	synthSustain = 0.55
	synthRelease = 90 * time.Millisecond // time constant of the release tail
	synthFloor   = 1e-4                  // envelope level at which a released voice is dropped
	voiceGain    = 0.3
)

// harmonics are the relative partial amplitudes of the synth tone.
var harmonics = [...]float64{1, 0.35, 0.12, 0.05}

var harmonicsNorm = func() float64 {
	var sum float64
	for _, h := range harmonics {
		sum += h
	}
	return 1 / sum
}()

type envStage int8

const (
	stageAttack envStage = iota
	stageDecay
	stageRelease
)

// voice is one sounding note.
type voice struct {
	key        uint8
	step       float64 // phase advance per sample, in cycles
	phase      float64
	gain       float64
	env        float64
	stage      envStage
	attackInc  float64
	decayMul   float64
	releaseMul float64
}

func newVoice(sr beep.SampleRate, key uint8, velocity float64) *voice {
	rate := float64(sr)
	return &voice{
		key:        key,
		step:       pitch.MIDIFrequency(int(key)) / rate,
		gain:       voiceGain * velocity,
		attackInc:  1 / math.Max(1, synthAttack.Seconds()*rate),
		decayMul:   math.Exp(-1 / (synthDecay.Seconds() * rate)),
		releaseMul: math.Exp(-1 / (synthRelease.Seconds() * rate)),
	}
}

func (v *voice) release() { v.stage = stageRelease }

// Stream adds nothing to the mixer once the release tail has faded.
func (v *voice) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		switch v.stage {
		case stageAttack:
			v.env += v.attackInc
			if v.env >= 1 {
				v.env = 1
				v.stage = stageDecay
			}
		case stageDecay:
			v.env = synthSustain + (v.env-synthSustain)*v.decayMul
		case stageRelease:
			v.env *= v.releaseMul
			if v.env < synthFloor {
				return i, i > 0
			}
		}

		var s float64
		for h, amp := range harmonics {
			s += amp * math.Sin(2*math.Pi*v.phase*float64(h+1))
		}
		s *= harmonicsNorm * v.gain * v.env

		samples[i][0], samples[i][1] = s, s
		v.phase += v.step
		if v.phase >= 1 {
			v.phase -= math.Floor(v.phase)
		}
	}
	return len(samples), true
}

func (v *voice) Err() error { return nil }

// Synth is the oscillator fallback instrument: additive partials shaped by an
// attack/decay/release envelope, one voice per note-on.
type Synth struct {
	sr     beep.SampleRate
	mixer  *beep.Mixer
	active map[uint8][]*voice
}

// NewSynth creates an idle synth.
func NewSynth(sampleRate int) *Synth {
	return &Synth{
		sr:     beep.SampleRate(sampleRate),
		mixer:  &beep.Mixer{},
		active: make(map[uint8][]*voice),
	}
}

// SynthProvider never fails; it terminates the fallback chain.
func SynthProvider(sampleRate int) Provider {
	return Provider{
		Kind: contracts.SynthInstrument,
		Load: func(ctx context.Context) (Instrument, error) {
			return NewSynth(sampleRate), nil
		},
	}
}

func (s *Synth) Name() string { return string(contracts.SynthInstrument) }

// NoteOn starts a new voice. A repeated key gets its own voice so that two
// identical consecutive notes are articulated separately.
func (s *Synth) NoteOn(key uint8, velocity float64) {
	v := newVoice(s.sr, key, math.Max(0, math.Min(1, velocity)))
	s.active[key] = append(s.active[key], v)
	s.mixer.Add(v)
}

// NoteOff releases every voice on key.
func (s *Synth) NoteOff(key uint8) {
	for _, v := range s.active[key] {
		v.release()
	}
	delete(s.active, key)
}

// Silence drops every voice immediately.
func (s *Synth) Silence() {
	s.mixer.Clear()
	s.active = make(map[uint8][]*voice)
}

// Voices returns the number of voices still in the mixer, releasing ones included.
func (s *Synth) Voices() int { return s.mixer.Len() }

func (s *Synth) Stream(samples [][2]float64) (int, bool) {
	n, _ := s.mixer.Stream(samples)
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (s *Synth) Err() error { return nil }

func (s *Synth) Close() error {
	s.Silence()
	return nil
}
