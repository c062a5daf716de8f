// Package melody is the entry point of the SDK: it builds a playback session
// that loads note sequences, plays them through the audio backend and records
// them to WAV.
package melody

import (
	"github.com/leandrodaf/melody/sdk/contracts"
)

// NewPlayer creates a new playback session with the specified options.
// It applies default options; audio resources are acquired lazily on the
// first Load.
//
// opts ...contracts.Option: A variadic list of option functions to customize the session configuration.
//
// Returns:
//   - *Session: The session, implementing contracts.Player and contracts.Recorder.
//   - error: A validation error if an option is unusable.
func NewPlayer(opts ...contracts.Option) (*Session, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return newSession(options), nil
}
