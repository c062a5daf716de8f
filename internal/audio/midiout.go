package audio

import (
	"context"
	"math"

	"github.com/leandrodaf/melody/sdk/contracts"
	"go.uber.org/multierr"
)

const midiOutChannel = 0

// MIDIOut forwards notes to an external MIDI port. It streams silence into
// the bus so the output clock keeps running; the device makes the sound.
type MIDIOut struct {
	client contracts.ClientMIDI
	log    contracts.Logger
	held   map[uint8]int
}

// NewMIDIOut selects a program on the client and wraps it as an instrument.
func NewMIDIOut(client contracts.ClientMIDI, program uint8, log contracts.Logger) (*MIDIOut, error) {
	m := &MIDIOut{client: client, log: log, held: make(map[uint8]int)}
	if err := client.Send(contracts.MIDI{Command: contracts.ProgramChange, Channel: midiOutChannel, Note: program}); err != nil {
		return nil, err
	}
	return m, nil
}

// MIDIOutProvider opens a client through connect and wraps it.
func MIDIOutProvider(connect func() (contracts.ClientMIDI, error), program uint8, log contracts.Logger) Provider {
	return Provider{
		Kind: contracts.MIDIOutInstrument,
		Load: func(ctx context.Context) (Instrument, error) {
			client, err := connect()
			if err != nil {
				return nil, err
			}
			m, err := NewMIDIOut(client, program, log)
			if err != nil {
				return nil, multierr.Append(err, client.Stop())
			}
			return m, nil
		},
	}
}

func (m *MIDIOut) Name() string { return string(contracts.MIDIOutInstrument) }

func (m *MIDIOut) send(msg contracts.MIDI) {
	if err := m.client.Send(msg); err != nil {
		m.log.Warn("midi send failed",
			m.log.Field().Uint8("status", msg.Status()),
			m.log.Field().Error("error", err))
	}
}

func (m *MIDIOut) NoteOn(key uint8, velocity float64) {
	m.held[key]++
	m.send(contracts.MIDI{Command: contracts.NoteOn, Channel: midiOutChannel, Note: key, Velocity: toMIDIVelocity(velocity)})
}

func (m *MIDIOut) NoteOff(key uint8) {
	if m.held[key] == 0 {
		return
	}
	delete(m.held, key)
	m.send(contracts.MIDI{Command: contracts.NoteOff, Channel: midiOutChannel, Note: key})
}

func (m *MIDIOut) Silence() {
	for key := range m.held {
		m.send(contracts.MIDI{Command: contracts.NoteOff, Channel: midiOutChannel, Note: key})
	}
	m.held = make(map[uint8]int)
	m.send(contracts.MIDI{Command: contracts.ControlChange, Channel: midiOutChannel, Note: contracts.ControllerAllSoundOff})
	m.send(contracts.MIDI{Command: contracts.ControlChange, Channel: midiOutChannel, Note: contracts.ControllerAllNotesOff})
}

// SetVolume maps the master gain onto channel volume (CC 7).
func (m *MIDIOut) SetVolume(v float64) {
	m.send(contracts.MIDI{
		Command:  contracts.ControlChange,
		Channel:  midiOutChannel,
		Note:     contracts.ControllerVolume,
		Velocity: uint8(math.Round(math.Max(0, math.Min(1, v)) * 127)),
	})
}

func (m *MIDIOut) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (m *MIDIOut) Err() error { return nil }

func (m *MIDIOut) Close() error {
	m.Silence()
	return m.client.Stop()
}
