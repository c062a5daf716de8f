package sequence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/pitch"
)

// Shape tags which variant a NoteInput holds.
type Shape int8

const (
	// ShapeUnknown is any JSON value that is neither a string nor an object.
	ShapeUnknown Shape = iota
	// ShapeBare is a pitch string with implicit duration and velocity.
	ShapeBare
	// ShapeStructured is an object with explicit pitch, duration and velocity.
	ShapeStructured
)

// StructuredNote is the object form accepted from the generator. Duration is
// in seconds.
type StructuredNote struct {
	Pitch    string   `json:"pitch"`
	Duration *float64 `json:"duration,omitempty"`
	Velocity *float64 `json:"velocity,omitempty"`
}

// NoteInput is one entry of the generator's note list, resolved once into a
// Note by New.
type NoteInput struct {
	shape      Shape
	token      string
	structured StructuredNote
	raw        string
}

// Bare wraps a pitch token.
func Bare(token string) NoteInput {
	return NoteInput{shape: ShapeBare, token: token}
}

// Structured builds an explicit note.
func Structured(p string, d time.Duration, velocity float64) NoteInput {
	secs := d.Seconds()
	return NoteInput{shape: ShapeStructured, structured: StructuredNote{Pitch: p, Duration: &secs, Velocity: &velocity}}
}

// Shape reports the variant.
func (n NoteInput) Shape() Shape { return n.shape }

func (n NoteInput) String() string {
	switch n.shape {
	case ShapeBare:
		return n.token
	case ShapeStructured:
		return n.structured.Pitch
	default:
		return n.raw
	}
}

// UnmarshalJSON never fails on an unexpected shape; such entries are kept as
// ShapeUnknown so that New can drop them without rejecting the whole document.
func (n *NoteInput) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*n = NoteInput{raw: string(trimmed)}
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			n.shape, n.token = ShapeBare, s
		}
	case '{':
		var sn StructuredNote
		if err := json.Unmarshal(trimmed, &sn); err == nil {
			n.shape, n.structured = ShapeStructured, sn
		}
	}
	return nil
}

// MarshalJSON writes the variant back in the generator's format.
func (n NoteInput) MarshalJSON() ([]byte, error) {
	switch n.shape {
	case ShapeBare:
		return json.Marshal(n.token)
	case ShapeStructured:
		return json.Marshal(n.structured)
	default:
		if n.raw == "" {
			return []byte("null"), nil
		}
		return []byte(n.raw), nil
	}
}

func (n NoteInput) resolve() (Note, string) {
	switch n.shape {
	case ShapeBare:
		p, err := pitch.Parse(n.token)
		if err != nil {
			return Note{}, "unrecognized pitch"
		}
		return Note{Pitch: p, Duration: DefaultDuration, Velocity: DefaultVelocity}, ""

	case ShapeStructured:
		p, err := pitch.Parse(n.structured.Pitch)
		if err != nil {
			return Note{}, "unrecognized pitch"
		}
		note := Note{Pitch: p, Duration: DefaultDuration, Velocity: DefaultVelocity}
		if d := n.structured.Duration; d != nil {
			if math.IsNaN(*d) || math.IsInf(*d, 0) || *d < 0 {
				return Note{}, "duration must be a positive number of seconds"
			}
			if *d >= maxDurationSeconds {
				return Note{}, "duration is too long"
			}
			if *d > 0 {
				note.Duration = time.Duration(*d * float64(time.Second))
				if note.Duration <= 0 {
					return Note{}, "duration is shorter than a nanosecond"
				}
			}
		}
		if v := n.structured.Velocity; v != nil && !math.IsNaN(*v) {
			note.Velocity = clamp01(*v)
		}
		return note, ""

	default:
		return Note{}, "unsupported note shape"
	}
}

// maxDurationSeconds is the longest duration time.Duration can hold.
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// Document is the generator's JSON contract: {"notes": [...], "tempo": 120}.
type Document struct {
	Notes []NoteInput     `json:"notes"`
	Tempo json.RawMessage `json:"tempo"`
}

// Decode reads a generator document and resolves it into a NoteSequence.
func Decode(r io.Reader) (NoteSequence, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return NoteSequence{}, errkind.Wrap(fmt.Errorf("decode composition: %w", err), errkind.Validation,
			"The composition is not valid JSON.")
	}
	return doc.Sequence()
}

// Parse is Decode for an in-memory document.
func Parse(data []byte) (NoteSequence, error) {
	return Decode(bytes.NewReader(data))
}

// Sequence validates the document's tempo and resolves its notes.
func (d Document) Sequence() (NoteSequence, error) {
	raw := bytes.TrimSpace(d.Tempo)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoteSequence{}, errkind.Wrap(fmt.Errorf("%w: missing", ErrInvalidTempo), errkind.Validation,
			"The composition has no tempo.")
	}
	var tempo float64
	if err := json.Unmarshal(raw, &tempo); err != nil {
		return NoteSequence{}, errkind.Wrap(fmt.Errorf("%w: %s is not a number", ErrInvalidTempo, raw), errkind.Validation,
			"The tempo must be a number.")
	}
	return New(d.Notes, tempo)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
