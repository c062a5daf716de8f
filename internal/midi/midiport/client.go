// Package midiport sends MIDI through whichever gomidi driver the program
// registered, such as rtmididrv.
package midiport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/melody/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI output ports found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI output port selected")
)

// ClientMid sends messages to a gomidi output port.
type ClientMid struct {
	logger          contracts.Logger
	midiEventFilter *contracts.MIDIEventFilter
	ports           func() midi.OutPorts

	mu   sync.Mutex
	out  drivers.Out
	send func(midi.Message) error
}

// NewMIDIClient creates a client over the registered gomidi driver.
func NewMIDIClient(cfg contracts.MIDIOutConfig, logger contracts.Logger) (contracts.ClientMIDI, error) {
	return &ClientMid{
		logger:          logger,
		midiEventFilter: cfg.Filter,
		ports:           midi.GetOutPorts,
	}, nil
}

func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	outs := m.ports()
	if len(outs) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}
	devices := make([]contracts.DeviceInfo, len(outs))
	for i, out := range outs {
		devices[i] = contracts.DeviceInfo{ID: i, Name: out.String()}
	}
	return devices, nil
}

func (m *ClientMid) SelectDevice(deviceID int) error {
	outs := m.ports()
	if deviceID < 0 || deviceID >= len(outs) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out != nil {
		if err := m.out.Close(); err != nil {
			m.logger.Warn("closing previous port", m.logger.Field().Error("error", err))
		}
		m.out, m.send = nil, nil
	}

	out := outs[deviceID]
	send, err := midi.SendTo(out)
	if err != nil {
		return fmt.Errorf("opening %s: %w", out.String(), err)
	}
	m.out, m.send = out, send
	m.logger.Info("MIDI port selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", out.String()))
	return nil
}

func (m *ClientMid) Send(msg contracts.MIDI) error {
	if !m.midiEventFilter.Allows(msg.Command) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.send == nil {
		return ErrNoDeviceSelected
	}
	return m.send(toMessage(msg))
}

func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		return nil
	}
	if err := m.send(midi.ControlChange(0, contracts.ControllerAllNotesOff, 0)); err != nil {
		m.logger.Warn("failed to silence port", m.logger.Field().Error("error", err))
	}
	err := m.out.Close()
	m.out, m.send = nil, nil
	return err
}

func toMessage(msg contracts.MIDI) midi.Message {
	ch := msg.Channel & 0x0F
	switch msg.Command {
	case contracts.NoteOn:
		return midi.NoteOn(ch, msg.Note, msg.Velocity)
	case contracts.NoteOff:
		return midi.NoteOff(ch, msg.Note)
	case contracts.ControlChange:
		return midi.ControlChange(ch, msg.Note, msg.Velocity)
	case contracts.ProgramChange:
		return midi.ProgramChange(ch, msg.Note)
	default:
		return midi.Message(msg.Bytes())
	}
}
