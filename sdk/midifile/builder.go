// Package midifile lays a NoteSequence out as a single-track Standard MIDI
// File and reads such files back.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/sequence"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// TicksPerQuarter is the metric resolution of exported files.
	TicksPerQuarter uint16 = 480
	// Channel is the MIDI channel every note is written on.
	Channel uint8 = 0
	// Program is the General MIDI instrument of the track (acoustic grand piano).
	Program uint8 = 0
	// TrackName is written as the sequence name meta event.
	TrackName = "melody"
)

// ErrEmptyComposition is returned when no note could be laid out.
var ErrEmptyComposition = errors.New("empty composition")

// Event is one note of the exported line with absolute timing.
type Event struct {
	Key      uint8
	Start    time.Duration
	Duration time.Duration
	Velocity float64 // 0..1
}

// End is the instant the note stops sounding.
func (e Event) End() time.Duration { return e.Start + e.Duration }

// Document is the in-memory form of an exported file. It is built fresh per
// export and never cached.
type Document struct {
	Tempo           int
	Numerator       uint8
	Denominator     uint8
	TicksPerQuarter uint16
	Events          []Event
}

type buildOptions struct {
	log contracts.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithLogger routes per-note diagnostics to l.
func WithLogger(l contracts.Logger) Option {
	return func(o *buildOptions) { o.log = l }
}

// BuildDocument lays notes out back to back starting at zero. Each start time
// is the sum of the preceding durations, so the line never overlaps. Notes
// that cannot be mapped to a key are logged and skipped.
func BuildDocument(seq sequence.NoteSequence, opts ...Option) (Document, error) {
	o := buildOptions{log: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if seq.Tempo <= 0 {
		return Document{}, errkind.Wrap(fmt.Errorf("%w: %d", sequence.ErrInvalidTempo, seq.Tempo), errkind.Validation,
			"The tempo must be a positive number of beats per minute.")
	}

	doc := Document{
		Tempo:           seq.Tempo,
		Numerator:       4,
		Denominator:     4,
		TicksPerQuarter: TicksPerQuarter,
		Events:          make([]Event, 0, len(seq.Notes)),
	}

	var cursor time.Duration
	for i, n := range seq.Notes {
		if n.Pitch.IsZero() {
			o.log.Warn("skipping note without pitch", o.log.Field().Int("index", i))
			continue
		}
		key := n.Pitch.MIDINumber()
		if key < 0 || key > 127 {
			o.log.Warn("skipping note outside MIDI range",
				o.log.Field().Int("index", i),
				o.log.Field().Int("key", key))
			continue
		}
		if n.Duration <= 0 {
			o.log.Warn("skipping note with non-positive duration",
				o.log.Field().Int("index", i),
				o.log.Field().Duration("duration", n.Duration))
			continue
		}
		doc.Events = append(doc.Events, Event{
			Key:      uint8(key),
			Start:    cursor,
			Duration: n.Duration,
			Velocity: clampVelocity(n.Velocity),
		})
		cursor += n.Duration
	}

	if len(doc.Events) == 0 {
		return Document{}, errkind.Wrap(fmt.Errorf("%w: %d notes, none usable", ErrEmptyComposition, len(seq.Notes)),
			errkind.Validation, "The composition has no playable notes.")
	}

	o.log.Debug("midi document built",
		o.log.Field().Int("events", len(doc.Events)),
		o.log.Field().Int("tempo", doc.Tempo),
		o.log.Field().Duration("length", cursor))
	return doc, nil
}

// Build lays seq out and serializes it.
func Build(seq sequence.NoteSequence, opts ...Option) ([]byte, error) {
	doc, err := BuildDocument(seq, opts...)
	if err != nil {
		return nil, err
	}
	return doc.Encode()
}

// WriteFile builds seq and writes it to path.
func WriteFile(path string, seq sequence.NoteSequence, opts ...Option) error {
	data, err := Build(seq, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errkind.Wrap(fmt.Errorf("write %s: %w", path, err), errkind.Resource, "The MIDI file could not be saved.")
	}
	return nil
}

// Length is the end time of the last event.
func (d Document) Length() time.Duration {
	if len(d.Events) == 0 {
		return 0
	}
	return d.Events[len(d.Events)-1].End()
}

// Encode serializes the document: tempo, meter, name and program on tick 0,
// then note-on/note-off pairs.
func (d Document) Encode() ([]byte, error) {
	if len(d.Events) == 0 {
		return nil, errkind.Wrap(ErrEmptyComposition, errkind.Validation, "The composition has no playable notes.")
	}
	tpq := d.TicksPerQuarter
	if tpq == 0 {
		tpq = TicksPerQuarter
	}
	num, denom := d.Numerator, d.Denominator
	if num == 0 || denom == 0 {
		num, denom = 4, 4
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tpq)

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(TrackName))
	tr.Add(0, smf.MetaMeter(num, denom))
	tr.Add(0, smf.MetaTempo(float64(d.Tempo)))
	tr.Add(0, midi.ProgramChange(Channel, Program))

	var last uint32
	for _, ev := range d.Events {
		start := toTicks(ev.Start, d.Tempo, tpq)
		end := toTicks(ev.End(), d.Tempo, tpq)
		if end <= start {
			end = start + 1
		}
		if start < last {
			start = last
		}
		tr.Add(start-last, midi.NoteOn(Channel, ev.Key, midiVelocity(ev.Velocity)))
		tr.Add(end-start, midi.NoteOff(Channel, ev.Key))
		last = end
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write smf: %w", err)
	}
	return buf.Bytes(), nil
}

// toTicks converts an absolute time into ticks at a constant tempo. Rounding
// absolute positions rather than deltas keeps long lines from drifting.
func toTicks(d time.Duration, tempo int, tpq uint16) uint32 {
	return uint32(math.Round(d.Seconds() * float64(tpq) * float64(tempo) / 60))
}

func fromTicks(ticks int64, tempo int, tpq uint16) time.Duration {
	return time.Duration(ticks * 60 * int64(time.Second) / (int64(tpq) * int64(tempo)))
}

func clampVelocity(v float64) float64 {
	if math.IsNaN(v) {
		return sequence.DefaultVelocity
	}
	return math.Max(0, math.Min(1, v))
}

// midiVelocity maps 0..1 onto 1..127. Zero is avoided because a note-on with
// velocity 0 is a note-off.
func midiVelocity(v float64) uint8 {
	mv := uint8(math.Round(clampVelocity(v) * 127))
	if mv == 0 {
		mv = 1
	}
	return mv
}
