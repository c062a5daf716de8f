package contracts

// MIDICommand is the status nibble of a channel voice message.
type MIDICommand byte

const (
	// NoteOff releases a key (0x80).
	NoteOff MIDICommand = 0x80
	// NoteOn strikes a key (0x90).
	NoteOn MIDICommand = 0x90
	// ControlChange sets a controller value (0xB0); used for all-notes-off and volume.
	ControlChange MIDICommand = 0xB0
	// ProgramChange selects the instrument (0xC0).
	ProgramChange MIDICommand = 0xC0
)

// Controller numbers sent with ControlChange.
const (
	ControllerVolume      byte = 0x07
	ControllerAllSoundOff byte = 0x78
	ControllerAllNotesOff byte = 0x7B
)

// MIDI is one outgoing channel message.
type MIDI struct {
	Command  MIDICommand
	Channel  byte // 0-15
	Note     byte // Key or controller number (0-127).
	Velocity byte // Velocity or controller value (0-127).
}

// Status returns the status byte combining command and channel.
func (m MIDI) Status() byte {
	return byte(m.Command) | (m.Channel & 0x0F)
}

// Bytes returns the wire form. Program change carries a single data byte.
func (m MIDI) Bytes() []byte {
	if m.Command == ProgramChange {
		return []byte{m.Status(), m.Note & 0x7F}
	}
	return []byte{m.Status(), m.Note & 0x7F, m.Velocity & 0x7F}
}

// MIDIEventFilter restricts which commands a client forwards to the device.
// A nil filter forwards everything.
type MIDIEventFilter struct {
	Commands []MIDICommand // Commands allowed through.
}

// Allows reports whether cmd passes the filter.
func (f *MIDIEventFilter) Allows(cmd MIDICommand) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// ClientMIDI sends MIDI messages to a hardware or virtual output port.
type ClientMIDI interface {
	Stop() error                        // Closes the port and releases platform resources.
	ListDevices() ([]DeviceInfo, error) // Lists available output destinations.
	SelectDevice(deviceID int) error    // Opens the destination with the given ID.
	Send(msg MIDI) error                // Sends one message to the selected destination.
}
