package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/leandrodaf/melody/sdk/errkind"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrUnsupportedFile is returned for files this package did not write, such as
// SMPTE-timed files.
var ErrUnsupportedFile = errors.New("unsupported midi file")

// Decode reads a file produced by Encode back into a Document. Notes from all
// tracks are merged in start order; the first tempo and meter events win.
func Decode(data []byte) (Document, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Document{}, errkind.Wrap(fmt.Errorf("read smf: %w", err), errkind.Validation, "The MIDI file could not be read.")
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Document{}, errkind.Wrap(fmt.Errorf("%w: time format %v", ErrUnsupportedFile, s.TimeFormat), errkind.Validation,
			"The MIDI file uses an unsupported time format.")
	}

	doc := Document{TicksPerQuarter: ticks.Resolution()}

	type open struct {
		tick int64
		vel  uint8
	}
	type rawNote struct {
		key        uint8
		start, end int64
		vel        uint8
	}
	var notes []rawNote

	for _, tr := range s.Tracks {
		var abs int64
		pending := map[uint8]open{}
		for _, ev := range tr {
			abs += int64(ev.Delta)
			var (
				bpm          float64
				num, denom   uint8
				ch, key, vel uint8
			)
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if doc.Tempo == 0 {
					doc.Tempo = int(math.Round(bpm))
				}
			case ev.Message.GetMetaMeter(&num, &denom):
				if doc.Numerator == 0 {
					doc.Numerator, doc.Denominator = num, denom
				}
			case midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel):
				pending[key] = open{tick: abs, vel: vel}
			case midi.Message(ev.Message).GetNoteEnd(&ch, &key):
				if on, ok := pending[key]; ok {
					notes = append(notes, rawNote{key: key, start: on.tick, end: abs, vel: on.vel})
					delete(pending, key)
				}
			}
		}
	}

	if doc.Tempo <= 0 {
		doc.Tempo = 120
	}
	if doc.Numerator == 0 {
		doc.Numerator, doc.Denominator = 4, 4
	}
	if len(notes) == 0 {
		return Document{}, errkind.Wrap(fmt.Errorf("%w: no notes", ErrEmptyComposition), errkind.Validation,
			"The MIDI file has no notes.")
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].start < notes[j].start })

	doc.Events = make([]Event, len(notes))
	for i, n := range notes {
		doc.Events[i] = Event{
			Key:      n.key,
			Start:    fromTicks(n.start, doc.Tempo, doc.TicksPerQuarter),
			Duration: fromTicks(n.end-n.start, doc.Tempo, doc.TicksPerQuarter),
			Velocity: float64(n.vel) / 127,
		}
	}
	return doc, nil
}
