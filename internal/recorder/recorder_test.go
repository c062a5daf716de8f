package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/leandrodaf/melody/internal/audio"
	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

const testRate = 8000

func shortSequence() sequence.NoteSequence {
	seq := sequence.NoteSequence{Tempo: 120}
	for _, tok := range []string{"C4", "E4", "G4"} {
		seq.Notes = append(seq.Notes, sequence.Note{Pitch: pitch.MustParse(tok), Duration: 40 * time.Millisecond, Velocity: 1})
	}
	return seq
}

func testConfig(providers ...audio.Provider) Config {
	if len(providers) == 0 {
		providers = []audio.Provider{audio.SynthProvider(testRate)}
	}
	return Config{
		Logger:      logger.NewNopLogger(),
		SampleRate:  testRate,
		Volume:      1,
		Tail:        60 * time.Millisecond,
		Output:      contracts.NullOutput,
		Instruments: providers,
	}
}

func TestRecordWritesWAV(t *testing.T) {
	r := New(testConfig())
	seq := shortSequence()
	if got := r.Duration(seq); got != 180*time.Millisecond {
		t.Fatalf("Duration = %v", got)
	}

	var buf Buffer
	start := time.Now()
	if err := r.Record(context.Background(), seq, &buf); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Fatalf("recording returned after %v, faster than real time", elapsed)
	}

	dec := wav.NewDecoder(bytes.NewReader(buf.Bytes()))
	if !dec.IsValidFile() {
		t.Fatalf("output is not a valid WAV file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if pcm.Format.NumChannels != 2 || pcm.Format.SampleRate != testRate {
		t.Fatalf("format = %+v", pcm.Format)
	}
	wantFrames := 180 * testRate / 1000
	if frames := len(pcm.Data) / 2; frames != wantFrames {
		t.Fatalf("frames = %d, want %d", frames, wantFrames)
	}
	var loud bool
	for _, s := range pcm.Data {
		if s != 0 {
			loud = true
			break
		}
	}
	if !loud {
		t.Fatalf("recording is silent")
	}
}

func TestRecordRejectsInvalidSequence(t *testing.T) {
	var buf Buffer
	err := New(testConfig()).Record(context.Background(), sequence.NoteSequence{Tempo: 120}, &buf)
	if !errors.Is(err, sequence.ErrEmptyComposition) {
		t.Fatalf("err = %v, want ErrEmptyComposition", err)
	}
	if len(buf.Bytes()) != 0 {
		t.Fatalf("invalid sequence produced output")
	}
}

type closeCounter struct {
	audio.Instrument
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.Instrument.Close()
}

func TestRecordCancelReleasesResources(t *testing.T) {
	inst := &closeCounter{Instrument: audio.NewSynth(testRate)}
	provider := audio.Provider{
		Kind: contracts.SynthInstrument,
		Load: func(context.Context) (audio.Instrument, error) { return inst, nil },
	}
	cfg := testConfig(provider)
	cfg.Tail = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var buf Buffer
	err := New(cfg).Record(ctx, shortSequence(), &buf)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if errkind.KindOf(err) != errkind.Playback {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if inst.closed != 1 {
		t.Fatalf("instrument closed %d times, want 1", inst.closed)
	}
}

func TestRecordWithoutInstrument(t *testing.T) {
	failing := audio.Provider{
		Kind: contracts.SamplerInstrument,
		Load: func(context.Context) (audio.Instrument, error) { return nil, errors.New("no sf2") },
	}
	var buf Buffer
	err := New(testConfig(failing)).Record(context.Background(), shortSequence(), &buf)
	if !errkind.Is(err, errkind.Resource) {
		t.Fatalf("err = %v, want resource kind", err)
	}
}

func TestBufferSeek(t *testing.T) {
	var b Buffer
	_, _ = b.Write([]byte("abcdef"))
	if _, err := b.Seek(1, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	_, _ = b.Write([]byte("XY"))
	if _, err := b.Seek(0, io.SeekEnd); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	_, _ = b.Write([]byte("!"))
	if got := string(b.Bytes()); got != "aXYdef!" {
		t.Fatalf("contents = %q", got)
	}
	if _, err := b.Seek(-1, io.SeekStart); err == nil {
		t.Fatalf("negative seek should fail")
	}
}
