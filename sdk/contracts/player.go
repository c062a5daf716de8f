package contracts

import (
	"context"
	"io"
	"time"

	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

// TransportState is the playback state machine position.
type TransportState int

const (
	// Stopped is the initial state; the cursor sits at the start of the timeline.
	Stopped TransportState = iota
	// Playing means notes are being scheduled against the clock.
	Playing
	// Paused keeps the cursor where playback was halted.
	Paused
)

func (s TransportState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// NoteObserver receives the currently audible pitch, or nil when nothing is
// sounding. It is called from the scheduler goroutine and must not call back
// into the Player synchronously.
type NoteObserver func(note *pitch.Pitch)

// Player is the transport surface handed to a UI.
type Player interface {
	// Load replaces the current timeline, stopping any playback first. A
	// rejected sequence leaves the player unchanged.
	Load(seq sequence.NoteSequence) error
	// Play starts or resumes playback. With nothing loaded it is a no-op.
	Play() error
	// Pause halts playback, keeping the cursor.
	Pause() error
	// Stop halts playback and rewinds to the start.
	Stop() error
	// SetTempo changes the speed of the not-yet-played remainder.
	SetTempo(bpm int) error
	// SetVolume sets the master gain in [0,1], applied immediately.
	SetVolume(v float64) error
	// IsPlaying reports whether the engine is still producing the timeline.
	IsPlaying() bool
	// State returns the transport state.
	State() TransportState
	// OnNote registers the single audible-note observer; nil unregisters.
	OnNote(fn NoteObserver)
	// Cleanup releases every audio resource. Safe to call repeatedly.
	Cleanup() error
}

// Recorder renders a sequence through the audio path into an encoded file.
// Rendering is real time: expect the call to take about as long as the
// sequence itself plus a short tail.
type Recorder interface {
	RecordToAudioFile(ctx context.Context, seq sequence.NoteSequence, w io.WriteSeeker) error
	RecordingDuration(seq sequence.NoteSequence) time.Duration
}

// Timer is a pending clock callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time for the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
