// Package playback implements the transport state machine that schedules a
// loaded note sequence against a clock and drives a Renderer.
package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

// Tempo bounds applied by SetTempo.
const (
	MinTempo = 20
	MaxTempo = 300
)

var (
	// ErrInvalidTempo is returned by SetTempo for a non-positive tempo.
	ErrInvalidTempo = errors.New("tempo must be positive")
	// ErrInvalidVolume is returned by SetVolume for a value outside [0,1].
	ErrInvalidVolume = errors.New("volume must be within [0,1]")
)

// Renderer is the sound-producing side of the engine.
type Renderer interface {
	NoteOn(key uint8, velocity float64)
	NoteOff(key uint8)
	Silence()
	SetVolume(v float64)
}

type held struct {
	count    int
	velocity float64
}

// Engine is the transport. Every transition is serialized on mu. Observer
// callbacks never run while mu is held.
type Engine struct {
	out   Renderer
	clock contracts.Clock
	log   contracts.Logger

	mu        sync.Mutex
	state     contracts.TransportState
	tl        *timeline
	next      int
	anchorPos time.Duration
	anchorAt  time.Time
	tempo     int
	volume    float64
	timer     contracts.Timer
	token     uint64
	sounding  map[uint8]held
	current   *pitch.Pitch

	// gen changes whenever a run of emissions becomes stale: on every
	// transition into or out of Playing and on Load.
	gen      atomic.Uint64
	emitMu   sync.Mutex
	observer contracts.NoteObserver
}

// New creates a stopped engine with nothing loaded.
func New(out Renderer, clock contracts.Clock, log contracts.Logger) *Engine {
	if clock == nil {
		clock = WallClock{}
	}
	return &Engine{
		out:      out,
		clock:    clock,
		log:      log,
		volume:   1,
		sounding: make(map[uint8]held),
	}
}

// Load validates seq and replaces the timeline. Any playback in progress is
// stopped first. A rejected sequence leaves the engine untouched.
func (e *Engine) Load(seq sequence.NoteSequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	tl := buildTimeline(seq)

	e.mu.Lock()
	wasActive := e.state != contracts.Stopped
	if wasActive {
		e.haltLocked()
	}
	e.tl = tl
	e.tempo = seq.Tempo
	e.gen.Add(1)
	gen := e.gen.Load()
	e.mu.Unlock()

	e.log.Debug("sequence loaded",
		e.log.Field().Int("notes", len(seq.Notes)),
		e.log.Field().Int("tempo", seq.Tempo),
		e.log.Field().Duration("length", tl.length))
	if wasActive {
		e.emit(gen, nil)
	}
	return nil
}

// Play starts from the cursor. Playing with nothing loaded is a no-op.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.tl == nil {
		e.mu.Unlock()
		e.log.Warn("play ignored, nothing loaded")
		return nil
	}
	if e.state == contracts.Playing {
		e.mu.Unlock()
		return nil
	}

	resumed := e.state == contracts.Paused
	for key, h := range e.sounding {
		e.out.NoteOn(key, h.velocity)
	}
	e.state = contracts.Playing
	e.gen.Add(1)
	gen := e.gen.Load()
	now := e.clock.Now()
	e.anchorAt = now
	e.schedule(now)
	current := e.current
	e.mu.Unlock()

	e.log.Debug("playback started",
		e.log.Field().Bool("resumed", resumed),
		e.log.Field().Duration("position", e.anchorPosition()))
	if current != nil {
		e.emit(gen, current)
	}
	return nil
}

// Pause halts the schedule and keeps the cursor. It is a no-op unless playing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != contracts.Playing {
		e.mu.Unlock()
		return nil
	}
	e.anchorPos = e.positionLocked(e.clock.Now())
	e.cancelLocked()
	e.out.Silence()
	e.state = contracts.Paused
	e.gen.Add(1)
	gen := e.gen.Load()
	pos := e.anchorPos
	e.mu.Unlock()

	e.log.Debug("playback paused", e.log.Field().Duration("position", pos))
	e.emit(gen, nil)
	return nil
}

// Stop cancels every pending trigger and rewinds. Once Stop returns no
// further note callback is delivered for the stopped run.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == contracts.Stopped {
		e.mu.Unlock()
		return nil
	}
	e.haltLocked()
	e.gen.Add(1)
	gen := e.gen.Load()
	e.mu.Unlock()

	e.log.Debug("playback stopped")
	e.emit(gen, nil)
	return nil
}

// SetTempo changes the rate of the not-yet-played remainder. Values outside
// MinTempo..MaxTempo are clamped.
func (e *Engine) SetTempo(bpm int) error {
	if bpm <= 0 {
		return errkind.Wrap(fmt.Errorf("%w: %d", ErrInvalidTempo, bpm), errkind.Validation,
			"The tempo must be a positive number of beats per minute.")
	}
	if bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == contracts.Playing {
		now := e.clock.Now()
		e.anchorPos = e.positionLocked(now)
		e.anchorAt = now
		e.tempo = bpm
		e.cancelLocked()
		e.schedule(now)
	} else {
		e.tempo = bpm
	}
	e.log.Debug("tempo changed", e.log.Field().Int("tempo", bpm))
	return nil
}

// SetVolume forwards the master gain to the renderer immediately.
func (e *Engine) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errkind.Wrap(fmt.Errorf("%w: %v", ErrInvalidVolume, v), errkind.Validation,
			"The volume must be between 0 and 1.")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	e.out.SetVolume(v)
	return nil
}

// OnNote registers the single note observer, replacing any previous one.
func (e *Engine) OnNote(fn contracts.NoteObserver) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.observer = fn
}

// IsPlaying reports whether the timeline is still running. It turns false on
// its own when the last note ends.
func (e *Engine) IsPlaying() bool {
	return e.State() == contracts.Playing
}

func (e *Engine) State() contracts.TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the cursor in score time at the loaded tempo.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != contracts.Playing {
		return e.anchorPos
	}
	return e.positionLocked(e.clock.Now())
}

func (e *Engine) anchorPosition() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anchorPos
}

func (e *Engine) Tempo() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Loaded reports whether a timeline is loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl != nil
}

// Length returns the loaded timeline length at the loaded tempo.
func (e *Engine) Length() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tl == nil {
		return 0
	}
	return e.tl.length
}

// Close stops playback and drops the observer and the timeline.
func (e *Engine) Close() error {
	err := e.Stop()
	e.mu.Lock()
	e.tl = nil
	e.mu.Unlock()
	e.OnNote(nil)
	return err
}

func (e *Engine) rate() float64 {
	if e.tl == nil || e.tl.tempo <= 0 {
		return 1
	}
	return float64(e.tempo) / float64(e.tl.tempo)
}

func (e *Engine) positionLocked(now time.Time) time.Duration {
	pos := e.anchorPos + time.Duration(float64(now.Sub(e.anchorAt))*e.rate())
	if e.tl != nil && pos > e.tl.length {
		pos = e.tl.length
	}
	return pos
}

// schedule arms a timer for the next event. Requires mu.
func (e *Engine) schedule(now time.Time) {
	e.token++
	if e.next >= len(e.tl.events) {
		return
	}
	delay := time.Duration(float64(e.tl.events[e.next].at-e.positionLocked(now)) / e.rate())
	if delay < 0 {
		delay = 0
	}
	token := e.token
	e.timer = e.clock.AfterFunc(delay, func() { e.fire(token) })
}

func (e *Engine) cancelLocked() {
	e.token++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// haltLocked moves to Stopped with the cursor at zero and nothing sounding.
func (e *Engine) haltLocked() {
	e.cancelLocked()
	e.out.Silence()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.state = contracts.Stopped
	e.next = 0
	e.anchorPos = 0
	e.sounding = make(map[uint8]held)
	e.current = nil
}

func (e *Engine) fire(token uint64) {
	e.mu.Lock()
	if token != e.token || e.state != contracts.Playing {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	now := e.clock.Now()
	pos := e.positionLocked(now)
	// The timer was armed for this event; scheduling rounding must not skip it.
	if at := e.tl.events[e.next].at; pos < at {
		pos = at
	}

	var struck, released bool
	for e.next < len(e.tl.events) && e.tl.events[e.next].at <= pos {
		ev := e.tl.events[e.next]
		e.next++
		switch ev.kind {
		case noteOn:
			e.out.NoteOn(ev.key, ev.velocity)
			h := e.sounding[ev.key]
			h.count++
			h.velocity = ev.velocity
			e.sounding[ev.key] = h
			p := ev.pitch
			e.current = &p
			struck = true
		case noteOff:
			if h, ok := e.sounding[ev.key]; ok {
				e.out.NoteOff(ev.key)
				if h.count--; h.count > 0 {
					e.sounding[ev.key] = h
				} else {
					delete(e.sounding, ev.key)
				}
			}
			released = true
		}
	}

	finished := e.next >= len(e.tl.events)
	if finished {
		e.cancelLocked()
		e.resetLocked()
		e.gen.Add(1)
	} else {
		e.schedule(now)
	}
	gen := e.gen.Load()
	current := e.current
	silent := len(e.sounding) == 0
	e.mu.Unlock()

	switch {
	case finished:
		e.log.Debug("playback finished")
		e.emit(gen, nil)
	case struck:
		e.emit(gen, current)
	case released && silent:
		e.emit(gen, nil)
	}
}

// emit delivers p to the observer unless the run it belongs to is stale.
// Holding emitMu across the callback lets Stop wait for an in-flight one.
// emitMu is not re-entrant: an observer that calls Stop, Pause, Load or
// OnNote on the same goroutine deadlocks. Read accessors only take mu,
// which is released before emit runs.
func (e *Engine) emit(gen uint64, p *pitch.Pitch) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if e.observer == nil || e.gen.Load() != gen {
		return
	}
	if p != nil {
		cp := *p
		p = &cp
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("note observer panicked", e.log.Field().String("panic", fmt.Sprint(r)))
		}
	}()
	e.observer(p)
}
