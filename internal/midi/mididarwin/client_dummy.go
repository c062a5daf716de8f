//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/melody/sdk/contracts"
)

// ErrUnavailable is returned by every operation of the dummy client.
var ErrUnavailable = errors.New("CoreMIDI is not available on this platform")

type DummyMIDIClient struct {
	logger contracts.Logger
}

func NewMIDIClient(_ contracts.MIDIOutConfig, logger contracts.Logger) (contracts.ClientMIDI, error) {
	logger.Info("Using dummy MIDI client for non-macOS system")
	return &DummyMIDIClient{logger: logger}, nil
}

func (m *DummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI client")
	return nil, ErrUnavailable
}

func (m *DummyMIDIClient) SelectDevice(int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI client")
	return ErrUnavailable
}

func (m *DummyMIDIClient) Send(contracts.MIDI) error {
	return ErrUnavailable
}

func (m *DummyMIDIClient) Stop() error {
	m.logger.Debug("Stop called on dummy MIDI client")
	return nil
}
