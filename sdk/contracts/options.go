package contracts

import "time"

// OutputKind selects the device audio is pulled by.
type OutputKind string

const (
	// SpeakerOutput plays through the system audio device.
	SpeakerOutput OutputKind = "speaker"
	// NullOutput pulls audio in real time and discards it. Useful headless.
	NullOutput OutputKind = "null"
)

// InstrumentKind names one provider in the instrument fallback chain.
type InstrumentKind string

const (
	// SamplerInstrument renders through a SoundFont.
	SamplerInstrument InstrumentKind = "sampler"
	// SynthInstrument renders through the built-in oscillator synth.
	SynthInstrument InstrumentKind = "synth"
	// MIDIOutInstrument forwards notes to a MIDI output port.
	MIDIOutInstrument InstrumentKind = "midi-out"
)

// SoundFontConfig locates the sampled instrument.
type SoundFontConfig struct {
	Path        string        // SF2 file; empty skips the sampler.
	Program     uint8         // General MIDI program selected after loading.
	LoadTimeout time.Duration // Loading slower than this falls back to the next instrument.
}

// MIDIOutConfig configures the MIDI-out instrument.
type MIDIOutConfig struct {
	ClientName string           // Name registered with the platform MIDI service.
	DeviceID   int              // Destination index from ListDevices.
	PortName   string           // Port name substring; overrides DeviceID when set.
	Filter     *MIDIEventFilter // Optional filter on forwarded commands.
}

// ClientOptions defines the configuration of a Player session.
type ClientOptions struct {
	Logger      Logger   // Logger for logging events and errors.
	LogLevel    LogLevel // Level of logging to use.
	LogFilePath string   // File path for logging if file logging is enabled.

	SampleRate         int              // Render sample rate in Hz.
	Output             OutputKind       // Output device.
	OutputReadyTimeout time.Duration    // How long to wait for the output to become ready.
	Instruments        []InstrumentKind // Fallback chain, first success wins.
	SoundFont          SoundFontConfig
	MIDIOut            *MIDIOutConfig
	Volume             *float64      // Initial master gain; nil means the default.
	RecordingTail      time.Duration // Silence captured after the last note.
	Clock              Clock         // Scheduler clock; nil means wall time.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the session.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the session.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends logs to path instead of the console.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithSampleRate sets the render sample rate.
func WithSampleRate(hz int) Option {
	return func(opts *ClientOptions) {
		opts.SampleRate = hz
	}
}

// WithOutput selects the output device.
func WithOutput(kind OutputKind) Option {
	return func(opts *ClientOptions) {
		opts.Output = kind
	}
}

// WithOutputReadyTimeout bounds the wait for the output device.
func WithOutputReadyTimeout(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.OutputReadyTimeout = d
	}
}

// WithInstruments sets the instrument fallback chain.
func WithInstruments(kinds ...InstrumentKind) Option {
	return func(opts *ClientOptions) {
		opts.Instruments = append([]InstrumentKind(nil), kinds...)
	}
}

// WithSoundFont enables the sampler with the given SF2 file.
func WithSoundFont(cfg SoundFontConfig) Option {
	return func(opts *ClientOptions) {
		opts.SoundFont = cfg
	}
}

// WithMIDIOut configures the MIDI-out instrument.
func WithMIDIOut(cfg MIDIOutConfig) Option {
	return func(opts *ClientOptions) {
		opts.MIDIOut = &cfg
	}
}

// WithVolume sets the initial master gain.
func WithVolume(v float64) Option {
	return func(opts *ClientOptions) {
		opts.Volume = &v
	}
}

// WithRecordingTail sets the silence captured after the last recorded note.
func WithRecordingTail(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.RecordingTail = d
	}
}

// WithClock replaces the scheduler clock.
func WithClock(c Clock) Option {
	return func(opts *ClientOptions) {
		opts.Clock = c
	}
}
