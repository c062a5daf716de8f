// Package errkind classifies failures into the three categories surfaced to
// callers: bad input, unavailable resources and playback preconditions.
package errkind

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Kind is the failure category carried by an error chain.
type Kind = ftag.Kind

const (
	// Unknown is reported for errors that were never classified.
	Unknown Kind = "UNKNOWN"
	// Validation covers malformed pitches, bad tempo and empty compositions.
	Validation Kind = "VALIDATION"
	// Resource covers audio output, instrument and file failures.
	Resource Kind = "RESOURCE"
	// Playback covers transport misuse such as playing with nothing loaded.
	Playback Kind = "PLAYBACK"
)

var defaultMessages = map[Kind]string{
	Validation: "The composition is not valid.",
	Resource:   "Audio resources are unavailable.",
	Playback:   "Playback could not continue.",
	Unknown:    "Something went wrong.",
}

// Wrap tags err with kind and a short user-facing message. A nil err stays nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(err,
		ftag.With(kind),
		fmsg.WithDesc(string(kind), message),
	)
}

// New builds a tagged error from scratch.
func New(kind Kind, internal, message string) error {
	return fault.New(internal, ftag.With(kind), fmsg.WithDesc(string(kind), message))
}

// KindOf returns the category recorded on err, or Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	switch k := ftag.Get(err); k {
	case Validation, Resource, Playback:
		return k
	default:
		return Unknown
	}
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err, falling back to a
// per-category default when none was attached.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return defaultMessages[KindOf(err)]
}
