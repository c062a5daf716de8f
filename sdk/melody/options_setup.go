package melody

import (
	"fmt"
	"math"
	"time"

	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/internal/playback"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
)

// Defaults applied by NewPlayer.
const (
	DefaultSampleRate    = 44100
	DefaultVolume        = 0.8
	DefaultReadyTimeout  = 2 * time.Second
	DefaultLoadTimeout   = 3 * time.Second
	DefaultRecordingTail = 1500 * time.Millisecond
	DefaultClientName    = "Melody MIDI Client"
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: A validation error when an option holds an unusable value.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.SampleRate == 0 {
		options.SampleRate = DefaultSampleRate
	}
	if options.Output == "" {
		options.Output = contracts.SpeakerOutput
	}
	if options.OutputReadyTimeout <= 0 {
		options.OutputReadyTimeout = DefaultReadyTimeout
	}
	if len(options.Instruments) == 0 {
		options.Instruments = []contracts.InstrumentKind{contracts.SamplerInstrument, contracts.SynthInstrument}
	}
	if options.SoundFont.LoadTimeout <= 0 {
		options.SoundFont.LoadTimeout = DefaultLoadTimeout
	}
	if options.MIDIOut != nil && options.MIDIOut.ClientName == "" {
		options.MIDIOut.ClientName = DefaultClientName
	}
	if options.Volume == nil {
		v := DefaultVolume
		options.Volume = &v
	}
	if options.RecordingTail <= 0 {
		options.RecordingTail = DefaultRecordingTail
	}
	if options.Clock == nil {
		options.Clock = playback.WallClock{}
	}

	if err := validateOptions(options); err != nil {
		return contracts.ClientOptions{}, err
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}

func validateOptions(o *contracts.ClientOptions) error {
	invalid := func(format string, args ...any) error {
		return errkind.New(errkind.Validation, fmt.Sprintf(format, args...), "The player configuration is invalid.")
	}

	if o.SampleRate < 0 {
		return invalid("sample rate %d must be positive", o.SampleRate)
	}
	if v := *o.Volume; math.IsNaN(v) || v < 0 || v > 1 {
		return invalid("volume %v outside [0,1]", v)
	}
	switch o.Output {
	case contracts.SpeakerOutput, contracts.NullOutput:
	default:
		return invalid("unknown output %q", o.Output)
	}
	for _, kind := range o.Instruments {
		switch kind {
		case contracts.SamplerInstrument, contracts.SynthInstrument:
		case contracts.MIDIOutInstrument:
			if o.MIDIOut == nil {
				return invalid("instrument %q requires a MIDI out configuration", kind)
			}
		default:
			return invalid("unknown instrument %q", kind)
		}
	}
	return nil
}
