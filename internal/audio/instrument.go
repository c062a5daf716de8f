package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gopxl/beep"
	"github.com/leandrodaf/melody/sdk/contracts"
	"go.uber.org/multierr"
)

// ErrNoInstrument is returned when every provider in the chain failed.
var ErrNoInstrument = errors.New("no instrument could be loaded")

// Instrument turns note instructions into a continuous audio stream. Stream
// must keep returning ok=true; an idle instrument streams silence.
// The Bus serializes every call, so implementations need no locking of their own.
type Instrument interface {
	beep.Streamer
	Name() string
	NoteOn(key uint8, velocity float64)
	NoteOff(key uint8)
	Silence()
	Close() error
}

// VolumeSetter is implemented by instruments that apply gain outside the bus,
// such as an external MIDI device.
type VolumeSetter interface {
	SetVolume(v float64)
}

// Provider loads one instrument kind.
type Provider struct {
	Kind contracts.InstrumentKind
	Load func(ctx context.Context) (Instrument, error)
}

// LoadFirst tries providers in order and returns the first instrument that
// loads. Failures are logged and collected; only when all fail is an error returned.
func LoadFirst(ctx context.Context, log contracts.Logger, providers ...Provider) (Instrument, error) {
	var errs error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return nil, multierr.Append(errs, err)
		}
		inst, err := p.Load(ctx)
		if err == nil {
			log.Debug("instrument loaded", log.Field().String("instrument", string(p.Kind)))
			return inst, nil
		}
		log.Warn("instrument unavailable, trying next",
			log.Field().String("instrument", string(p.Kind)),
			log.Field().Error("error", err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.Kind, err))
	}
	if errs == nil {
		return nil, ErrNoInstrument
	}
	return nil, fmt.Errorf("%w: %v", ErrNoInstrument, errs)
}
