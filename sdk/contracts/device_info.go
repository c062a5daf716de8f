package contracts

// DeviceInfo describes a MIDI output destination a ClientMIDI can select.
type DeviceInfo struct {
	ID           int    // Index accepted by SelectDevice.
	Name         string // Device name.
	Manufacturer string // Device manufacturer, when the platform reports one.
	EntityName   string // Name of the entity to which the device belongs.
}
