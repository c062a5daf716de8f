package midifile

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func mustTokens(t *testing.T, tempo int, tokens ...string) sequence.NoteSequence {
	t.Helper()
	seq, err := sequence.FromTokens(tokens, tempo)
	if err != nil {
		t.Fatalf("FromTokens: %v", err)
	}
	return seq
}

func TestSequentialLayout(t *testing.T) {
	doc, err := BuildDocument(mustTokens(t, 120, "C4", "E4", "G4"))
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	if len(doc.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(doc.Events))
	}
	d := doc.Events[0].Duration
	if doc.Events[0].Start != 0 {
		t.Errorf("first start = %v", doc.Events[0].Start)
	}
	if doc.Events[1].Start != d {
		t.Errorf("second start = %v, want %v", doc.Events[1].Start, d)
	}
	if doc.Events[2].Start != 2*d {
		t.Errorf("third start = %v, want %v", doc.Events[2].Start, 2*d)
	}
	for i := 1; i < len(doc.Events); i++ {
		if doc.Events[i].Start < doc.Events[i-1].End() {
			t.Errorf("event %d overlaps its predecessor", i)
		}
	}
	wantKeys := []uint8{60, 64, 67}
	for i, ev := range doc.Events {
		if ev.Key != wantKeys[i] {
			t.Errorf("event %d key = %d, want %d", i, ev.Key, wantKeys[i])
		}
	}
	if doc.Numerator != 4 || doc.Denominator != 4 || doc.Tempo != 120 {
		t.Errorf("header = %d/%d @ %d", doc.Numerator, doc.Denominator, doc.Tempo)
	}
}

func TestDuplicatePitchesStayDistinct(t *testing.T) {
	doc, err := BuildDocument(mustTokens(t, 100, "A4", "A4"))
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	if len(doc.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(doc.Events))
	}
	decoded, err := Decode(mustEncode(t, doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Events) != 2 {
		t.Fatalf("decoded %d events, want 2", len(decoded.Events))
	}
}

func TestRoundTrip(t *testing.T) {
	seq, err := sequence.New([]sequence.NoteInput{
		sequence.Bare("C4"),
		sequence.Structured("F#5", time.Second, 1),
		sequence.Structured("Bb3", 250*time.Millisecond, 0.5),
	}, 120)
	if err != nil {
		t.Fatalf("sequence.New: %v", err)
	}
	want, err := BuildDocument(seq)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	got, err := Decode(mustEncode(t, want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Tempo != 120 || got.Numerator != 4 || got.Denominator != 4 || got.TicksPerQuarter != TicksPerQuarter {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Events) != len(want.Events) {
		t.Fatalf("event count %d, want %d", len(got.Events), len(want.Events))
	}
	for i := range want.Events {
		w, g := want.Events[i], got.Events[i]
		if w.Key != g.Key || w.Start != g.Start || w.Duration != g.Duration {
			t.Errorf("event %d: got %+v, want %+v", i, g, w)
		}
		if math.Abs(w.Velocity-g.Velocity) > 1.0/127 {
			t.Errorf("event %d velocity %v, want %v", i, g.Velocity, w.Velocity)
		}
	}
	if got.Length() != 1750*time.Millisecond {
		t.Errorf("length = %v", got.Length())
	}
}

func TestEmptyCompositionFails(t *testing.T) {
	_, err := Build(sequence.NoteSequence{Tempo: 120})
	if !errors.Is(err, ErrEmptyComposition) {
		t.Fatalf("expected ErrEmptyComposition, got %v", err)
	}
	if !errkind.Is(err, errkind.Validation) {
		t.Fatalf("expected validation kind")
	}
}

func TestUnusableNotesAreSkippedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	seq := sequence.NoteSequence{
		Tempo: 90,
		Notes: []sequence.Note{
			{Pitch: pitch.Pitch{}, Duration: time.Second, Velocity: 0.5},
			{Pitch: pitch.MustParse("D4"), Duration: 0, Velocity: 0.5},
			{Pitch: pitch.MustParse("E4"), Duration: time.Second, Velocity: 3},
		},
	}
	doc, err := BuildDocument(seq, WithLogger(log))
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	if len(doc.Events) != 1 || doc.Events[0].Start != 0 {
		t.Fatalf("unexpected events %+v", doc.Events)
	}
	if doc.Events[0].Velocity != 1 {
		t.Errorf("velocity should clamp to 1, got %v", doc.Events[0].Velocity)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 2 {
		t.Fatalf("expected 2 warnings, got %d", n)
	}
}

func TestMIDIVelocityNeverZero(t *testing.T) {
	if midiVelocity(0) != 1 {
		t.Fatalf("velocity 0 must encode as 1")
	}
	if midiVelocity(1) != 127 {
		t.Fatalf("velocity 1 must encode as 127")
	}
	if midiVelocity(math.NaN()) == 0 {
		t.Fatalf("NaN velocity must still sound")
	}
}

func mustEncode(t *testing.T, doc Document) []byte {
	t.Helper()
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}
