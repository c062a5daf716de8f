// Package recorder plays a sequence through a private audio path while
// capturing the bus, then encodes the capture as a WAV file.
package recorder

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/leandrodaf/melody/internal/audio"
	"github.com/leandrodaf/melody/internal/playback"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/sequence"
	"go.uber.org/multierr"
)

// DefaultTail is the silence captured after the last note so release tails
// are not cut off.
const DefaultTail = 1500 * time.Millisecond

const (
	bitDepth  = 16
	channels  = 2
	pcmFormat = 1
)

// Config describes the audio path a recording builds for itself.
type Config struct {
	Logger       contracts.Logger
	SampleRate   int
	Volume       float64
	Tail         time.Duration
	Output       contracts.OutputKind
	ReadyTimeout time.Duration
	Instruments  []audio.Provider
}

// Recorder renders sequences to WAV in real time.
type Recorder struct {
	cfg Config
}

func New(cfg Config) *Recorder {
	if cfg.Tail <= 0 {
		cfg.Tail = DefaultTail
	}
	return &Recorder{cfg: cfg}
}

// Duration is how long recording seq takes and how long the file will be.
func Duration(seq sequence.NoteSequence, tail time.Duration) time.Duration {
	return seq.TotalDuration() + tail
}

// Duration is the package-level Duration with the configured tail.
func (r *Recorder) Duration(seq sequence.NoteSequence) time.Duration {
	return Duration(seq, r.cfg.Tail)
}

// Record plays seq, capturing the bus from before the first note until the
// sequence plus tail has elapsed, then writes a 16-bit stereo WAV to w. The
// call blocks for the whole real-time duration unless ctx ends first. Every
// resource it acquired is released on return.
func (r *Recorder) Record(ctx context.Context, seq sequence.NoteSequence, w io.WriteSeeker) (err error) {
	if err := seq.Validate(); err != nil {
		return err
	}
	log := r.cfg.Logger
	length := r.Duration(seq)

	inst, err := audio.LoadFirst(ctx, log, r.cfg.Instruments...)
	if err != nil {
		return errkind.Wrap(err, errkind.Resource, "No instrument is available for recording.")
	}
	bus := audio.NewBus(inst, r.cfg.Volume)
	defer multierr.AppendInvoke(&err, multierr.Close(bus))

	var frames [][2]float64
	release := bus.Capture(func(s [][2]float64) {
		frames = append(frames, s...)
	})
	defer release()

	out, err := audio.NewOutput(r.cfg.Output, r.cfg.SampleRate, r.cfg.ReadyTimeout, log)
	if err != nil {
		return err
	}
	if err := out.Start(bus); err != nil {
		return errkind.Wrap(err, errkind.Resource, "The audio output could not be started for recording.")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))

	engine := playback.New(bus, playback.WallClock{}, log)
	defer multierr.AppendInvoke(&err, multierr.Close(engine))
	if err := engine.Load(seq); err != nil {
		return err
	}
	if err := engine.SetVolume(r.cfg.Volume); err != nil {
		return err
	}

	log.Info("recording started",
		log.Field().Int("notes", len(seq.Notes)),
		log.Field().Duration("length", length))
	if err := engine.Play(); err != nil {
		return err
	}

	wait := time.NewTimer(length)
	defer wait.Stop()
	select {
	case <-ctx.Done():
		return errkind.Wrap(ctx.Err(), errkind.Playback, "The recording was cancelled.")
	case <-wait.C:
	}

	// Stop pulling before reading the capture.
	if err := out.Close(); err != nil {
		return errkind.Wrap(err, errkind.Resource, "The audio output failed while recording.")
	}
	release()

	captured := fit(frames, int(math.Round(length.Seconds()*float64(r.cfg.SampleRate))))
	if err := Encode(w, captured, r.cfg.SampleRate); err != nil {
		return errkind.Wrap(err, errkind.Resource, "The recording could not be written.")
	}
	log.Info("recording finished", log.Field().Int("frames", len(captured)))
	return nil
}

// fit pads with silence or truncates so the file length does not depend on
// how far ahead the output device buffered.
func fit(frames [][2]float64, n int) [][2]float64 {
	if len(frames) >= n {
		return frames[:n]
	}
	out := make([][2]float64, n)
	copy(out, frames)
	return out
}

// Encode writes frames as a 16-bit stereo PCM WAV.
func Encode(w io.WriteSeeker, frames [][2]float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, pcmFormat)
	data := make([]int, 0, len(frames)*channels)
	for _, f := range frames {
		data = append(data, toInt16(f[0]), toInt16(f[1]))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return multierr.Append(err, enc.Close())
	}
	return enc.Close()
}

func toInt16(v float64) int {
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * math.MaxInt16))
}
