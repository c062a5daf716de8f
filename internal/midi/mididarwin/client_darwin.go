//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI output issues.
var (
	ErrNoMIDIDevices     = errors.New("no MIDI destinations found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrCreateOutputPort  = errors.New("error creating output port")
	ErrNoDeviceSelected  = errors.New("no MIDI destination selected")
	ErrClientStopped     = errors.New("MIDI client stopped")
)

// ClientMid sends MIDI messages to a CoreMIDI destination on macOS.
type ClientMid struct {
	logger          contracts.Logger
	client          coremidi.Client            // CoreMIDI client instance.
	outputPort      coremidi.OutputPort        // Output port messages are sent through.
	destination     *coremidi.Destination      // Selected destination, nil until SelectDevice.
	midiEventFilter *contracts.MIDIEventFilter // Filter for outgoing commands.
	mu              sync.Mutex                 // Guards port, destination and stopped.
	stopped         bool
	stopOnce        sync.Once // Ensures Stop() is executed only once.
}

// NewMIDIClient creates a CoreMIDI client with one output port.
func NewMIDIClient(cfg contracts.MIDIOutConfig, logger contracts.Logger) (contracts.ClientMIDI, error) {
	client, err := coremidi.NewClient(cfg.ClientName)
	if err != nil {
		return nil, err
	}
	port, err := coremidi.NewOutputPort(client, "Output Port")
	if err != nil {
		logger.Error(ErrCreateOutputPort.Error(), logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	logger.Info("MIDI client successfully created", logger.Field().String("client", cfg.ClientName))

	return &ClientMid{
		logger:          logger,
		client:          client,
		outputPort:      port,
		midiEventFilter: cfg.Filter,
	}, nil
}

// ListDevices returns the available MIDI destinations.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(destinations) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(destinations))
	for i, d := range destinations {
		entity := d.Entity()
		devices[i] = contracts.DeviceInfo{
			ID:           i,
			Name:         d.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice routes subsequent messages to the destination with the given index.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if deviceID < 0 || deviceID >= len(destinations) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}

	dest := destinations[deviceID]
	m.destination = &dest
	m.logger.Info("MIDI destination selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", dest.Name()))
	return nil
}

// Send writes one message to the selected destination. Commands rejected by
// the filter are dropped silently.
func (m *ClientMid) Send(msg contracts.MIDI) error {
	if !m.midiEventFilter.Allows(msg.Command) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrClientStopped
	}
	if m.destination == nil {
		return ErrNoDeviceSelected
	}
	packet := coremidi.NewPacket(msg.Bytes(), 0)
	return packet.Send(&m.outputPort, m.destination)
}

// Stop silences the destination and stops accepting messages. Only the first
// call has an effect.
func (m *ClientMid) Stop() error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.destination != nil {
			for _, cc := range []byte{contracts.ControllerAllSoundOff, contracts.ControllerAllNotesOff} {
				msg := contracts.MIDI{Command: contracts.ControlChange, Note: cc}
				packet := coremidi.NewPacket(msg.Bytes(), 0)
				if err := packet.Send(&m.outputPort, m.destination); err != nil {
					m.logger.Warn("failed to silence destination", m.logger.Field().Error("error", err))
				}
			}
		}
		m.stopped = true
		m.destination = nil
		m.logger.Info("MIDI client stopped")
	})
	return nil
}
