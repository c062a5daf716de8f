// Package pitch parses scientific pitch notation and converts pitches to
// MIDI note numbers and equal-tempered frequencies.
//
// All octave arithmetic lives here so that MIDI export and live playback can
// never disagree about which key a token refers to.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ErrInvalidPitch is returned when a token does not match the pitch grammar.
var ErrInvalidPitch = errors.New("invalid pitch")

// Accidental is the optional sharp or flat modifier of a pitch.
type Accidental int8

const (
	// Natural means no accidental.
	Natural Accidental = iota
	// Sharp raises the letter by one semitone ('#').
	Sharp
	// Flat lowers the letter by one semitone ('b').
	Flat
)

// String returns the notation suffix for the accidental.
func (a Accidental) String() string {
	switch a {
	case Sharp:
		return "#"
	case Flat:
		return "b"
	default:
		return ""
	}
}

const (
	// MinOctave and MaxOctave bound the octave digit accepted by Parse.
	MinOctave = 0
	MaxOctave = 8

	// ReferenceFrequency is the tuning anchor, A4.
	ReferenceFrequency = 440.0
	// ReferenceMIDINumber is the MIDI note number of A4.
	ReferenceMIDINumber = 69
	// MiddleC is the MIDI note number of C4.
	MiddleC = 60
)

var grammar = regexp.MustCompile(`^([A-G])(#|b)?([0-8])$`)

// chromatic is the single 12-entry table every conversion goes through.
// Flats are normalized to these sharp spellings before lookup.
var chromatic = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// letterOffsets holds the semitone offset of each natural letter from C.
var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Pitch is an immutable parsed pitch such as C#4 or Bb3.
// The zero value is not a valid pitch; use IsZero to detect it.
type Pitch struct {
	letter     byte
	accidental Accidental
	octave     int
}

// Parse accepts exactly `^[A-G](#|b)?[0-8]$`. The letter is case-sensitive.
func Parse(text string) (Pitch, error) {
	m := grammar.FindStringSubmatch(text)
	if m == nil {
		return Pitch{}, fmt.Errorf("%w: %q", ErrInvalidPitch, text)
	}
	p := Pitch{letter: m[1][0]}
	switch m[2] {
	case "#":
		p.accidental = Sharp
	case "b":
		p.accidental = Flat
	}
	p.octave, _ = strconv.Atoi(m[3])
	return p, nil
}

// MustParse is like Parse but panics on invalid input. Intended for constants and tests.
func MustParse(text string) Pitch {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// FromMIDINumber returns the sharp spelling of a MIDI note number. Only numbers
// whose octave falls in 0..8 (12..119) can be represented.
func FromMIDINumber(n int) (Pitch, error) {
	octave := n/12 - 1
	if n < 0 || octave < MinOctave || octave > MaxOctave {
		return Pitch{}, fmt.Errorf("%w: midi number %d outside octaves %d..%d", ErrInvalidPitch, n, MinOctave, MaxOctave)
	}
	name := chromatic[n%12]
	p := Pitch{letter: name[0], octave: octave}
	if len(name) == 2 {
		p.accidental = Sharp
	}
	return p, nil
}

// ValidateNotes filters tokens down to the parseable ones, preserving order.
// The result may be empty; callers decide whether that is fatal.
func ValidateNotes(tokens []string) []Pitch {
	out := make([]Pitch, 0, len(tokens))
	for _, t := range tokens {
		if p, err := Parse(t); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// FrequencyHz parses text and returns its frequency, or 0 when text is not a
// valid pitch. Zero is the silent sentinel, never an error.
func FrequencyHz(text string) float64 {
	p, err := Parse(text)
	if err != nil {
		return 0
	}
	return p.Frequency()
}

// MIDINumber parses text and returns its MIDI note number.
func MIDINumber(text string) (int, error) {
	p, err := Parse(text)
	if err != nil {
		return 0, err
	}
	return p.MIDINumber(), nil
}

// Letter returns the note letter, 'A' through 'G'.
func (p Pitch) Letter() byte { return p.letter }

// Accidental returns the accidental as written.
func (p Pitch) Accidental() Accidental { return p.accidental }

// Octave returns the octave digit as written.
func (p Pitch) Octave() int { return p.octave }

// IsZero reports whether p is the zero value.
func (p Pitch) IsZero() bool { return p.letter == 0 }

// MIDINumber returns the MIDI note number with C4 = 60.
// Letters map through the natural table; accidentals add or subtract a semitone,
// so Cb4 is 59 and B#4 is 72.
func (p Pitch) MIDINumber() int {
	semis := letterOffsets[p.letter]
	switch p.accidental {
	case Sharp:
		semis++
	case Flat:
		semis--
	}
	return MiddleC + semis + (p.octave-4)*12
}

// SemitonesFromA4 is the signed distance from the tuning reference.
func (p Pitch) SemitonesFromA4() int {
	return p.MIDINumber() - ReferenceMIDINumber
}

// Frequency returns the equal-tempered frequency in Hz (A4 = 440).
func (p Pitch) Frequency() float64 {
	if p.IsZero() {
		return 0
	}
	return MIDIFrequency(p.MIDINumber())
}

// MIDIFrequency is the equal-tempered frequency of a MIDI note number. Both
// Pitch.Frequency and the synthesizer go through it.
func MIDIFrequency(n int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(n-ReferenceMIDINumber)/12)
}

// Sharp returns the enharmonic spelling from the chromatic table, e.g. Db4 -> C#4
// and Cb4 -> B3. Cb0 and B#8 keep their spelling, since B-1 and C9 would not parse.
func (p Pitch) Sharp() Pitch {
	if p.IsZero() {
		return p
	}
	n := p.MIDINumber()
	name := chromatic[((n%12)+12)%12]
	out := Pitch{letter: name[0], octave: n/12 - 1}
	if out.octave < MinOctave || out.octave > MaxOctave {
		return p
	}
	if len(name) == 2 {
		out.accidental = Sharp
	}
	return out
}

// String renders the pitch in its sharp spelling. Naturals and sharps that are
// already in the chromatic table render exactly as parsed.
func (p Pitch) String() string {
	if p.IsZero() {
		return ""
	}
	s := p.Sharp()
	return string(s.letter) + s.accidental.String() + strconv.Itoa(s.octave)
}

// Written renders the pitch exactly as it was parsed, flats included.
func (p Pitch) Written() string {
	if p.IsZero() {
		return ""
	}
	return string(p.letter) + p.accidental.String() + strconv.Itoa(p.octave)
}
