package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// constInstrument streams a fixed level and records calls.
type constInstrument struct {
	mu      sync.Mutex
	level   float64
	on      []uint8
	off     []uint8
	silence int
	closed  int
	streams int
}

func (c *constInstrument) Name() string { return "const" }
func (c *constInstrument) NoteOn(key uint8, _ float64) {
	c.on = append(c.on, key)
}
func (c *constInstrument) NoteOff(key uint8) { c.off = append(c.off, key) }
func (c *constInstrument) Silence()          { c.silence++ }
func (c *constInstrument) Close() error {
	c.closed++
	return nil
}
func (c *constInstrument) Err() error { return nil }
func (c *constInstrument) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	c.streams++
	c.mu.Unlock()
	for i := range samples {
		samples[i] = [2]float64{c.level, c.level}
	}
	return len(samples), true
}

func (c *constInstrument) streamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams
}

func energy(samples [][2]float64) float64 {
	var e float64
	for _, s := range samples {
		e += s[0]*s[0] + s[1]*s[1]
	}
	return e
}

func TestSynthVoiceLifecycle(t *testing.T) {
	s := NewSynth(44100)
	buf := make([][2]float64, 2048)

	s.Stream(buf)
	if energy(buf) != 0 {
		t.Fatalf("idle synth should be silent")
	}

	s.NoteOn(69, 0.8)
	s.Stream(buf)
	if energy(buf) == 0 {
		t.Fatalf("expected sound after NoteOn")
	}
	for _, v := range buf {
		if math.Abs(v[0]) > 1 {
			t.Fatalf("sample out of range: %v", v[0])
		}
	}

	s.NoteOff(69)
	if s.Voices() != 1 {
		t.Fatalf("released voice should still ring, voices = %d", s.Voices())
	}
	for i := 0; i < 44100/len(buf)+2; i++ {
		s.Stream(buf)
	}
	if s.Voices() != 0 {
		t.Fatalf("released voice should be dropped after its tail, voices = %d", s.Voices())
	}
	if energy(buf) != 0 {
		t.Fatalf("synth should be silent after release")
	}
}

func TestSynthRepeatedKeyGetsOwnVoice(t *testing.T) {
	s := NewSynth(44100)
	s.NoteOn(60, 1)
	s.NoteOn(60, 1)
	if s.Voices() != 2 {
		t.Fatalf("voices = %d, want 2", s.Voices())
	}
	s.Silence()
	if s.Voices() != 0 {
		t.Fatalf("Silence left %d voices", s.Voices())
	}
}

func TestBusAppliesVolume(t *testing.T) {
	tests := []struct {
		volume float64
		want   float64
	}{
		{1, 0.5},
		{0.5, 0.25},
		{0, 0},
		{2, 0.5},
	}
	for _, tt := range tests {
		bus := NewBus(&constInstrument{level: 0.5}, 1)
		bus.SetVolume(tt.volume)
		buf := make([][2]float64, 4)
		bus.Stream(buf)
		if math.Abs(buf[0][0]-tt.want) > 1e-9 {
			t.Errorf("volume %v: sample = %v, want %v", tt.volume, buf[0][0], tt.want)
		}
	}
}

func TestBusReadsFloat32Frames(t *testing.T) {
	bus := NewBus(&constInstrument{level: 0.5}, 0.5)
	p := make([]byte, 2*bytesPerFrame+3)
	n, err := bus.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2*bytesPerFrame {
		t.Fatalf("read %d bytes, want whole frames only", n)
	}
	for off := 0; off < n; off += 4 {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[off:]))
		if got != 0.25 {
			t.Fatalf("sample at %d = %v", off, got)
		}
	}
}

func TestBusCaptureRelease(t *testing.T) {
	bus := NewBus(&constInstrument{level: 0.5}, 1)
	var captured int
	release := bus.Capture(func(s [][2]float64) { captured += len(s) })

	bus.Stream(make([][2]float64, 10))
	release()
	bus.Stream(make([][2]float64, 10))

	if captured != 10 {
		t.Fatalf("captured %d frames, want 10", captured)
	}
}

func TestBusClose(t *testing.T) {
	inst := &constInstrument{level: 0.5}
	bus := NewBus(inst, 1)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if inst.closed != 1 || inst.silence != 1 {
		t.Fatalf("closed=%d silence=%d, want 1 each", inst.closed, inst.silence)
	}
	if _, err := bus.Read(make([]byte, 64)); !errors.Is(err, io.EOF) {
		t.Fatalf("read after close = %v, want EOF", err)
	}
	bus.NoteOn(60, 1)
	if len(inst.on) != 0 {
		t.Fatalf("closed bus forwarded a note")
	}
}

func TestLoadFirstFallsBackToSynth(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	inst, err := LoadFirst(context.Background(), log,
		SamplerProvider(contracts.SoundFontConfig{}, 44100),
		SynthProvider(44100),
	)
	if err != nil {
		t.Fatalf("LoadFirst: %v", err)
	}
	if inst.Name() != string(contracts.SynthInstrument) {
		t.Fatalf("loaded %q, want synth", inst.Name())
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expected the sampler failure to be logged")
	}
}

func TestLoadFirstAllFail(t *testing.T) {
	missing := contracts.SoundFontConfig{Path: "/nonexistent/piano.sf2", LoadTimeout: time.Second}
	_, err := LoadFirst(context.Background(), logger.NewNopLogger(), SamplerProvider(missing, 44100))
	if !errors.Is(err, ErrNoInstrument) {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
}

func TestLoadFirstHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadFirst(ctx, logger.NewNopLogger(), SynthProvider(44100)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type recordingClient struct {
	sent    []contracts.MIDI
	stopped bool
}

func (r *recordingClient) Stop() error                                  { r.stopped = true; return nil }
func (r *recordingClient) ListDevices() ([]contracts.DeviceInfo, error) { return nil, nil }
func (r *recordingClient) SelectDevice(int) error                       { return nil }
func (r *recordingClient) Send(m contracts.MIDI) error {
	r.sent = append(r.sent, m)
	return nil
}

func TestMIDIOutForwardsNotes(t *testing.T) {
	client := &recordingClient{}
	m, err := NewMIDIOut(client, 0, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewMIDIOut: %v", err)
	}
	bus := NewBus(m, 0.5)

	bus.NoteOn(60, 1)
	bus.NoteOff(60)
	bus.NoteOff(60)

	want := []contracts.MIDI{
		{Command: contracts.ProgramChange},
		{Command: contracts.ControlChange, Note: contracts.ControllerVolume, Velocity: 64},
		{Command: contracts.NoteOn, Note: 60, Velocity: 127},
		{Command: contracts.NoteOff, Note: 60},
	}
	if len(client.sent) != len(want) {
		t.Fatalf("sent %+v", client.sent)
	}
	for i := range want {
		if client.sent[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, client.sent[i], want[i])
		}
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.stopped {
		t.Fatalf("client not stopped on close")
	}
}

func TestNullOutputPullsUntilClosed(t *testing.T) {
	inst := &constInstrument{}
	bus := NewBus(inst, 1)
	out := NewNullOutput(8000)
	if err := out.Start(bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := out.Start(bus); err == nil {
		t.Fatalf("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for inst.streamCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	n := inst.streamCount()
	if n == 0 {
		t.Fatalf("null output never pulled")
	}
	time.Sleep(3 * nullTick)
	if inst.streamCount() != n {
		t.Fatalf("output kept pulling after Close")
	}
}

func TestUnknownOutput(t *testing.T) {
	if _, err := NewOutput("tape", 44100, 0, logger.NewNopLogger()); err == nil {
		t.Fatalf("expected an error for an unknown output")
	}
}

func TestToMIDIVelocity(t *testing.T) {
	tests := map[float64]uint8{0: 1, 0.5: 64, 1: 127, 7: 127, -1: 1}
	for in, want := range tests {
		if got := toMIDIVelocity(in); got != want {
			t.Errorf("toMIDIVelocity(%v) = %d, want %d", in, got, want)
		}
	}
}
