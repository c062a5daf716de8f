//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/melody/sdk/contracts"
)

// ErrUnavailable is returned by every operation of the dummy client.
var ErrUnavailable = errors.New("winmm is not available on this platform")

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewMIDIClient initializes a dummy MIDI client for non-Windows systems.
func NewMIDIClient(_ contracts.MIDIOutConfig, logger contracts.Logger) (contracts.ClientMIDI, error) {
	logger.Info("Using dummy MIDI client for non-Windows system")
	return &dummyMIDIClient{logger: logger}, nil
}

func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI client")
	return nil, ErrUnavailable
}

func (m *dummyMIDIClient) SelectDevice(int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI client")
	return ErrUnavailable
}

func (m *dummyMIDIClient) Send(contracts.MIDI) error {
	return ErrUnavailable
}

func (m *dummyMIDIClient) Stop() error {
	m.logger.Debug("Stop called on dummy MIDI client")
	return nil
}
