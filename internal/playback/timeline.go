package playback

import (
	"sort"
	"time"

	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

type eventKind int8

// Note-offs sort before note-ons at the same instant so a repeated pitch is
// released before it is struck again.
const (
	noteOff eventKind = iota
	noteOn
)

type event struct {
	at       time.Duration // score time at the loaded tempo
	kind     eventKind
	key      uint8
	velocity float64
	pitch    pitch.Pitch
}

// timeline is the absolute-time schedule built once per Load. Tempo changes
// scale playback rate; they never rewrite these timestamps.
type timeline struct {
	events []event
	length time.Duration
	tempo  int
}

func buildTimeline(seq sequence.NoteSequence) *timeline {
	tl := &timeline{tempo: seq.Tempo, events: make([]event, 0, 2*len(seq.Notes))}
	var cursor time.Duration
	for _, n := range seq.Notes {
		key := uint8(n.Pitch.MIDINumber())
		tl.events = append(tl.events,
			event{at: cursor, kind: noteOn, key: key, velocity: n.Velocity, pitch: n.Pitch},
			event{at: cursor + n.Duration, kind: noteOff, key: key, pitch: n.Pitch},
		)
		cursor += n.Duration
	}
	tl.length = cursor
	sort.SliceStable(tl.events, func(i, j int) bool {
		if tl.events[i].at != tl.events[j].at {
			return tl.events[i].at < tl.events[j].at
		}
		return tl.events[i].kind < tl.events[j].kind
	})
	return tl
}
