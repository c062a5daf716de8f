//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/melody/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIOUT windows.Handle

// Constants for open flags
const (
	CALLBACK_NULL = 0x00000000 // No callback; output only
)

var (
	ErrNoMIDIDevices    = errors.New("no MIDI output devices found")
	ErrNoDeviceSelected = errors.New("no MIDI output device selected")
)

// Struct representing MIDI output device capabilities (MIDIOUTCAPSW)
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// ClientMid sends MIDI messages through winmm on Windows
type ClientMid struct {
	logger          contracts.Logger
	handle          HMIDIOUT
	portConn        bool
	mu              sync.Mutex
	midiEventFilter *contracts.MIDIEventFilter
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// NewMIDIClient creates a MIDI output client for Windows
func NewMIDIClient(cfg contracts.MIDIOutConfig, logger contracts.Logger) (contracts.ClientMIDI, error) {
	logger.Info("MIDI client created for Windows")

	return &ClientMid{
		logger:          logger,
		midiEventFilter: cfg.Filter,
	}, nil
}

// ListDevices lists the available MIDI output devices
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn("No MIDI output devices found")
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn(fmt.Sprintf("Failed to get information for MIDI device %d", i))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			ID:           int(i),
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// SelectDevice opens the output device, closing any previously opened one
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portConn {
		if err := m.closeDevice(); err != nil {
			return fmt.Errorf("failed to close previous MIDI device: %w", err)
		}
	}

	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		0,
		0,
		uintptr(CALLBACK_NULL),
	)
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to open MIDI device %d: %v", deviceID, err))
		return fmt.Errorf("failed to open MIDI device %d: %v", deviceID, err)
	}

	m.portConn = true
	m.logger.Info(fmt.Sprintf("MIDI device %d connected", deviceID))
	return nil
}

// Send writes one short message to the open device
func (m *ClientMid) Send(msg contracts.MIDI) error {
	if !m.midiEventFilter.Allows(msg.Command) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.portConn {
		return ErrNoDeviceSelected
	}

	data := msg.Bytes()
	packed := uint32(data[0]) | uint32(data[1])<<8
	if len(data) > 2 {
		packed |= uint32(data[2]) << 16
	}
	r1, _, err := procMidiOutShortMsg.Call(uintptr(m.handle), uintptr(packed))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg failed: %v", err)
	}
	return nil
}

// Stop silences and closes the device
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		m.logger.Debug("No MIDI device is connected")
		return nil
	}

	if err := m.closeDevice(); err != nil {
		return fmt.Errorf("failed to close MIDI device: %w", err)
	}
	m.logger.Info("MIDI device closed")
	return nil
}

// closeDevice resets pending notes and releases the handle
func (m *ClientMid) closeDevice() error {
	if m.handle == 0 {
		return fmt.Errorf("invalid MIDI device handle")
	}

	r1, _, err := procMidiOutReset.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to reset MIDI device: %v", err))
		return err
	}

	r1, _, err = procMidiOutClose.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to close MIDI device: %v", err))
		return err
	}

	m.portConn = false
	m.handle = 0
	return nil
}
