package melody

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/leandrodaf/melody/internal/midi/mididarwin"
	"github.com/leandrodaf/melody/internal/midi/midiport"
	"github.com/leandrodaf/melody/internal/midi/midiwindows"
	"github.com/leandrodaf/melody/sdk/contracts"
)

type clientInitializer func(contracts.MIDIOutConfig, contracts.Logger) (contracts.ClientMIDI, error)

// clientInitializers maps OS names to corresponding MIDI client initializers.
var clientInitializers = map[string]clientInitializer{
	"darwin":  mididarwin.NewMIDIClient,  // macOS (Darwin) CoreMIDI client initializer.
	"windows": midiwindows.NewMIDIClient, // Windows winmm client initializer.
}

// NewMIDIOutClient creates the MIDI output client for the current operating
// system. Platforms without a native client use the registered gomidi driver.
//
// Returns:
//   - contracts.ClientMIDI: An instance of the MIDI client, with no device selected yet.
//   - error: An error if the platform client could not be created.
func NewMIDIOutClient(cfg contracts.MIDIOutConfig, log contracts.Logger) (contracts.ClientMIDI, error) {
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if initializer, exists := clientInitializers[runtime.GOOS]; exists {
		return initializer(cfg, log)
	}
	return midiport.NewMIDIClient(cfg, log)
}

// OpenMIDIOut creates the client and selects the configured device: the first
// whose name contains cfg.PortName, or cfg.DeviceID when no name is given.
func OpenMIDIOut(cfg contracts.MIDIOutConfig, log contracts.Logger) (contracts.ClientMIDI, error) {
	client, err := NewMIDIOutClient(cfg, log)
	if err != nil {
		return nil, err
	}

	id := cfg.DeviceID
	if cfg.PortName != "" {
		devices, err := client.ListDevices()
		if err != nil {
			_ = client.Stop()
			return nil, err
		}
		id = -1
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), strings.ToLower(cfg.PortName)) {
				id = d.ID
				break
			}
		}
		if id < 0 {
			_ = client.Stop()
			return nil, fmt.Errorf("no MIDI output matching %q", cfg.PortName)
		}
	}

	if err := client.SelectDevice(id); err != nil {
		_ = client.Stop()
		return nil, err
	}
	return client, nil
}
