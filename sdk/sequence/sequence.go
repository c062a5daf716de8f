// Package sequence holds the canonical in-memory composition: an ordered list
// of notes and a tempo. It is produced once from generator output and then
// only read.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/pitch"
)

// Defaults applied to bare pitch tokens and to structured notes that omit a field.
const (
	DefaultDuration = 500 * time.Millisecond
	DefaultVelocity = 0.8
)

var (
	// ErrEmptyComposition is returned when no note survives validation.
	ErrEmptyComposition = errors.New("empty composition")
	// ErrInvalidTempo is returned for a missing, non-numeric or non-positive tempo.
	ErrInvalidTempo = errors.New("invalid tempo")
	// ErrInvalidNote is returned by Validate for a note that breaks an invariant.
	ErrInvalidNote = errors.New("invalid note")
)

// Note is the canonical note shape every consumer reads.
type Note struct {
	Pitch    pitch.Pitch
	Duration time.Duration
	Velocity float64 // 0..1
}

// Rejection records an input entry that was dropped during ingestion.
type Rejection struct {
	Index  int
	Raw    string
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("note %d (%s): %s", r.Index, r.Raw, r.Reason)
}

// NoteSequence is an ordered melody plus tempo in quarter notes per minute.
type NoteSequence struct {
	Notes []Note
	Tempo int

	// Rejected lists the inputs dropped while building the sequence.
	Rejected []Rejection
}

// New resolves inputs into a NoteSequence. Invalid entries are dropped and
// reported in Rejected; the call fails only when the tempo is unusable or no
// entry survives.
func New(inputs []NoteInput, tempo float64) (NoteSequence, error) {
	bpm, err := normalizeTempo(tempo)
	if err != nil {
		return NoteSequence{}, err
	}

	seq := NoteSequence{Tempo: bpm, Notes: make([]Note, 0, len(inputs))}
	for i, in := range inputs {
		n, reason := in.resolve()
		if reason != "" {
			seq.Rejected = append(seq.Rejected, Rejection{Index: i, Raw: in.String(), Reason: reason})
			continue
		}
		seq.Notes = append(seq.Notes, n)
	}

	if len(seq.Notes) == 0 {
		return NoteSequence{}, emptyError(len(inputs))
	}
	return seq, nil
}

// FromTokens builds a sequence from bare pitch strings.
func FromTokens(tokens []string, tempo int) (NoteSequence, error) {
	inputs := make([]NoteInput, len(tokens))
	for i, t := range tokens {
		inputs[i] = Bare(t)
	}
	return New(inputs, float64(tempo))
}

// Validate re-checks the invariants for sequences assembled by hand.
func (s NoteSequence) Validate() error {
	if s.Tempo <= 0 {
		return errkind.Wrap(fmt.Errorf("%w: %d", ErrInvalidTempo, s.Tempo), errkind.Validation,
			"The tempo must be a positive number of beats per minute.")
	}
	if len(s.Notes) == 0 {
		return emptyError(0)
	}
	for i, n := range s.Notes {
		switch {
		case n.Pitch.IsZero():
			return invalidNote(i, "missing pitch")
		case n.Duration <= 0:
			return invalidNote(i, "duration must be positive")
		case math.IsNaN(n.Velocity) || n.Velocity < 0 || n.Velocity > 1:
			return invalidNote(i, "velocity outside 0..1")
		}
	}
	return nil
}

// TotalDuration is the sum of all note durations, i.e. the length of the
// monophonic line at its native tempo.
func (s NoteSequence) TotalDuration() time.Duration {
	var total time.Duration
	for _, n := range s.Notes {
		total += n.Duration
	}
	return total
}

// Tokens returns the sharp spelling of each note.
func (s NoteSequence) Tokens() []string {
	out := make([]string, len(s.Notes))
	for i, n := range s.Notes {
		out[i] = n.Pitch.String()
	}
	return out
}

func normalizeTempo(tempo float64) (int, error) {
	if math.IsNaN(tempo) || math.IsInf(tempo, 0) || tempo <= 0 {
		return 0, errkind.Wrap(fmt.Errorf("%w: %v", ErrInvalidTempo, tempo), errkind.Validation,
			"The tempo must be a positive number of beats per minute.")
	}
	bpm := int(math.Round(tempo))
	if bpm < 1 {
		bpm = 1
	}
	return bpm, nil
}

func emptyError(inputs int) error {
	return errkind.Wrap(fmt.Errorf("%w: none of %d notes are playable", ErrEmptyComposition, inputs),
		errkind.Validation, "The composition has no playable notes.")
}

func invalidNote(i int, reason string) error {
	return errkind.Wrap(fmt.Errorf("%w at %d: %s", ErrInvalidNote, i, reason), errkind.Validation,
		"The composition contains an unplayable note.")
}
