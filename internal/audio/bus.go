package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// bytesPerFrame is one interleaved stereo float32 frame.
const bytesPerFrame = 8

// CaptureFunc receives every block the bus renders, after master gain. The
// slice is reused; implementations must copy what they keep.
type CaptureFunc func(samples [][2]float64)

// Bus owns the instrument and the master gain stage and is the single audio
// source pulled by an Output. Note instructions and rendering are serialized
// on one mutex.
type Bus struct {
	mu      sync.Mutex
	inst    Instrument
	gain    *effects.Gain
	volume  float64
	capture CaptureFunc
	frames  [][2]float64
	closed  bool
}

// NewBus wires inst behind a gain stage at the given volume.
func NewBus(inst Instrument, volume float64) *Bus {
	b := &Bus{
		inst: inst,
		gain: &effects.Gain{Streamer: inst},
	}
	b.setVolume(volume)
	return b
}

// Instrument returns the instrument the bus renders.
func (b *Bus) Instrument() Instrument { return b.inst }

func (b *Bus) NoteOn(key uint8, velocity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.inst.NoteOn(key, velocity)
	}
}

func (b *Bus) NoteOff(key uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.inst.NoteOff(key)
	}
}

// Silence cuts every sounding note, release tails included.
func (b *Bus) Silence() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.inst.Silence()
	}
}

// SetVolume sets the linear master gain. Out-of-range values are clamped;
// callers validate before getting here.
func (b *Bus) SetVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setVolume(v)
}

func (b *Bus) setVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	b.volume = v
	// effects.Gain multiplies by 1+Gain.
	b.gain.Gain = v - 1
	if vs, ok := b.inst.(VolumeSetter); ok && !b.closed {
		vs.SetVolume(v)
	}
}

// Volume returns the current master gain.
func (b *Bus) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// Capture installs fn as the capture tap and returns a function that removes
// it. Only one tap is active at a time.
func (b *Bus) Capture(fn CaptureFunc) (release func()) {
	b.mu.Lock()
	b.capture = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.capture = nil
		b.mu.Unlock()
	}
}

// Stream renders the next block. A closed bus streams silence.
func (b *Bus) Stream(samples [][2]float64) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream(samples)
	return len(samples), true
}

func (b *Bus) stream(samples [][2]float64) {
	if b.closed {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return
	}
	n, _ := b.gain.Stream(samples)
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	if b.capture != nil {
		b.capture(samples)
	}
}

func (b *Bus) Err() error { return nil }

// Read implements io.Reader as interleaved little-endian float32 stereo PCM,
// the format the speaker output is opened with. It returns io.EOF once the
// bus is closed.
func (b *Bus) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFrame
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.EOF
	}
	if n == 0 {
		return 0, nil
	}
	if cap(b.frames) < n {
		b.frames = make([][2]float64, n)
	}
	frames := b.frames[:n]
	b.stream(frames)
	for i, f := range frames {
		off := i * bytesPerFrame
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(clip(f[0])))
		binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(clip(f[1])))
	}
	return n * bytesPerFrame, nil
}

func clip(v float64) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return float32(v)
	}
}

// Close silences and closes the instrument. Further reads return io.EOF.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.capture = nil
	b.inst.Silence()
	return b.inst.Close()
}

var _ beep.Streamer = (*Bus)(nil)
