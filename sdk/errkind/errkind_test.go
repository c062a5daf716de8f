package errkind

import (
	"errors"
	"fmt"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestWrapKeepsChainAndKind(t *testing.T) {
	err := Wrap(fmt.Errorf("%w: detail", errSentinel), Validation, "The tempo is missing.")
	if !errors.Is(err, errSentinel) {
		t.Fatalf("wrapped error lost its sentinel: %v", err)
	}
	if got := KindOf(err); got != Validation {
		t.Fatalf("KindOf = %q, want %q", got, Validation)
	}
	if got := Message(err); got != "The tempo is missing." {
		t.Fatalf("Message = %q", got)
	}
}

func TestKindsAreDistinct(t *testing.T) {
	seen := map[string]Kind{}
	for _, k := range []Kind{Validation, Resource, Playback} {
		msg := Message(New(k, "boom", defaultMessages[k]))
		if prev, dup := seen[msg]; dup {
			t.Fatalf("kinds %q and %q share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}

func TestUnclassified(t *testing.T) {
	if Wrap(nil, Resource, "x") != nil {
		t.Fatalf("Wrap(nil) must stay nil")
	}
	plain := errors.New("plain")
	if KindOf(plain) != Unknown {
		t.Fatalf("plain error should be Unknown")
	}
	if Message(plain) != defaultMessages[Unknown] {
		t.Fatalf("unexpected fallback message %q", Message(plain))
	}
	if Is(nil, Validation) {
		t.Fatalf("nil error has no kind")
	}
}
