package melody

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/leandrodaf/melody/internal/audio"
	"github.com/leandrodaf/melody/internal/playback"
	"github.com/leandrodaf/melody/internal/recorder"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/sequence"
	"go.uber.org/multierr"
)

var (
	_ contracts.Player   = (*Session)(nil)
	_ contracts.Recorder = (*Session)(nil)
)

// Session owns one audio path (output, bus, instrument) and the engine that
// drives it. The path is acquired on the first Load and released by Cleanup;
// a later Load acquires a fresh one.
type Session struct {
	opts contracts.ClientOptions
	log  contracts.Logger

	mu       sync.Mutex
	out      audio.Output
	bus      *audio.Bus
	engine   *playback.Engine
	volume   float64
	observer contracts.NoteObserver
}

func newSession(opts contracts.ClientOptions) *Session {
	return &Session{
		opts:   opts,
		log:    opts.Logger,
		volume: *opts.Volume,
	}
}

// providers turns the configured instrument order into the fallback chain.
func (s *Session) providers() []audio.Provider {
	out := make([]audio.Provider, 0, len(s.opts.Instruments))
	for _, kind := range s.opts.Instruments {
		switch kind {
		case contracts.SamplerInstrument:
			out = append(out, audio.SamplerProvider(s.opts.SoundFont, s.opts.SampleRate))
		case contracts.SynthInstrument:
			out = append(out, audio.SynthProvider(s.opts.SampleRate))
		case contracts.MIDIOutInstrument:
			cfg := *s.opts.MIDIOut
			connect := func() (contracts.ClientMIDI, error) { return OpenMIDIOut(cfg, s.log) }
			out = append(out, audio.MIDIOutProvider(connect, s.opts.SoundFont.Program, s.log))
		}
	}
	return out
}

// acquire builds the audio path if it does not exist yet. Requires mu. On
// failure nothing is kept.
func (s *Session) acquire() (*playback.Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}

	inst, err := audio.LoadFirst(context.Background(), s.log, s.providers()...)
	if err != nil {
		s.log.Error("no instrument available", s.log.Field().Error("error", err))
		return nil, errkind.Wrap(err, errkind.Resource, "No instrument could be loaded.")
	}
	bus := audio.NewBus(inst, s.volume)

	out, err := audio.NewOutput(s.opts.Output, s.opts.SampleRate, s.opts.OutputReadyTimeout, s.log)
	if err != nil {
		return nil, multierr.Append(err, bus.Close())
	}
	if err := out.Start(bus); err != nil {
		s.log.Error("audio output unavailable", s.log.Field().Error("error", err))
		if errkind.KindOf(err) == errkind.Unknown {
			err = errkind.Wrap(err, errkind.Resource, "The audio output is unavailable.")
		}
		return nil, multierr.Append(err, bus.Close())
	}

	engine := playback.New(bus, s.opts.Clock, s.log)
	if err := engine.SetVolume(s.volume); err != nil {
		return nil, multierr.Combine(err, out.Close(), bus.Close())
	}
	engine.OnNote(s.observer)

	s.out, s.bus, s.engine = out, bus, engine
	s.log.Info("audio session started",
		s.log.Field().String("instrument", inst.Name()),
		s.log.Field().String("output", string(s.opts.Output)),
		s.log.Field().Int("sample_rate", s.opts.SampleRate))
	return engine, nil
}

// current returns the engine, or nil before the first Load.
func (s *Session) current() *playback.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Session) logRejected(seq sequence.NoteSequence) {
	for _, r := range seq.Rejected {
		s.log.Warn("note dropped",
			s.log.Field().Int("index", r.Index),
			s.log.Field().String("token", r.Raw),
			s.log.Field().String("reason", r.Reason))
	}
}

// Load validates seq, acquires the audio path if needed and replaces the
// timeline. An invalid sequence acquires nothing.
func (s *Session) Load(seq sequence.NoteSequence) error {
	s.logRejected(seq)
	if err := seq.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	engine, err := s.acquire()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return engine.Load(seq)
}

// Play is a no-op until a sequence is loaded.
func (s *Session) Play() error {
	engine := s.current()
	if engine == nil {
		s.log.Warn("play ignored, nothing loaded")
		return nil
	}
	return engine.Play()
}

func (s *Session) Pause() error {
	if engine := s.current(); engine != nil {
		return engine.Pause()
	}
	return nil
}

func (s *Session) Stop() error {
	if engine := s.current(); engine != nil {
		return engine.Stop()
	}
	return nil
}

// SetTempo changes the playback tempo of the loaded sequence. Loading a new
// sequence resets the tempo to the sequence's own.
func (s *Session) SetTempo(bpm int) error {
	if engine := s.current(); engine != nil {
		return engine.SetTempo(bpm)
	}
	if bpm <= 0 {
		return errkind.Wrap(fmt.Errorf("%w: %d", playback.ErrInvalidTempo, bpm), errkind.Validation,
			"The tempo must be a positive number of beats per minute.")
	}
	return nil
}

// SetVolume sets the master gain. It is remembered across Cleanup.
func (s *Session) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errkind.Wrap(fmt.Errorf("%w: %v", playback.ErrInvalidVolume, v), errkind.Validation,
			"The volume must be between 0 and 1.")
	}
	s.mu.Lock()
	s.volume = v
	engine := s.engine
	s.mu.Unlock()
	if engine != nil {
		return engine.SetVolume(v)
	}
	return nil
}

func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Session) IsPlaying() bool {
	if engine := s.current(); engine != nil {
		return engine.IsPlaying()
	}
	return false
}

func (s *Session) State() contracts.TransportState {
	if engine := s.current(); engine != nil {
		return engine.State()
	}
	return contracts.Stopped
}

// Tempo returns the current playback tempo, 0 before the first Load.
func (s *Session) Tempo() int {
	if engine := s.current(); engine != nil {
		return engine.Tempo()
	}
	return 0
}

// Position returns the cursor in score time.
func (s *Session) Position() time.Duration {
	if engine := s.current(); engine != nil {
		return engine.Position()
	}
	return 0
}

// Length returns the loaded sequence length at its own tempo.
func (s *Session) Length() time.Duration {
	if engine := s.current(); engine != nil {
		return engine.Length()
	}
	return 0
}

// OnNote registers the audible-note observer, replacing any previous one. It
// survives Cleanup.
func (s *Session) OnNote(fn contracts.NoteObserver) {
	s.mu.Lock()
	s.observer = fn
	engine := s.engine
	s.mu.Unlock()
	if engine != nil {
		engine.OnNote(fn)
	}
}

// Cleanup stops playback and releases the engine, output and instrument.
// Calling it again, or before anything was acquired, does nothing.
func (s *Session) Cleanup() error {
	s.mu.Lock()
	engine, out, bus := s.engine, s.out, s.bus
	s.engine, s.out, s.bus = nil, nil, nil
	s.mu.Unlock()

	if engine == nil {
		return nil
	}
	err := multierr.Combine(engine.Close(), out.Close(), bus.Close())
	if err != nil {
		s.log.Error("cleanup failed", s.log.Field().Error("error", err))
		return errkind.Wrap(err, errkind.Resource, "Audio resources could not be released cleanly.")
	}
	s.log.Info("audio session released")
	return nil
}

func (s *Session) recorder() *recorder.Recorder {
	s.mu.Lock()
	volume := s.volume
	s.mu.Unlock()
	return recorder.New(recorder.Config{
		Logger:       s.log,
		SampleRate:   s.opts.SampleRate,
		Volume:       volume,
		Tail:         s.opts.RecordingTail,
		Output:       s.opts.Output,
		ReadyTimeout: s.opts.OutputReadyTimeout,
		Instruments:  s.providers(),
	})
}

// RecordToAudioFile plays seq through a private audio path and writes the
// captured output to w as WAV. It runs in real time: expect it to take
// RecordingDuration(seq). The session's own playback is not affected.
func (s *Session) RecordToAudioFile(ctx context.Context, seq sequence.NoteSequence, w io.WriteSeeker) error {
	s.logRejected(seq)
	return s.recorder().Record(ctx, seq, w)
}

// RecordingDuration is how long RecordToAudioFile takes for seq.
func (s *Session) RecordingDuration(seq sequence.NoteSequence) time.Duration {
	return recorder.Duration(seq, s.opts.RecordingTail)
}
