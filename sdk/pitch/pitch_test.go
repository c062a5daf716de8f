package pitch

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestParseGrammar(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"C4", true},
		{"F#5", true},
		{"Bb3", true},
		{"A0", true},
		{"C8", true},
		{"G#8", true},
		{"c4", false},
		{"H2", false},
		{"X9", false},
		{"C9", false},
		{"C-1", false},
		{"C##4", false},
		{"Cb", false},
		{"", false},
		{" C4", false},
		{"C4 ", false},
		{"CB4", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			_, err := Parse(tt.in)
			if tt.ok && err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("Parse(%q) accepted invalid token", tt.in)
				}
				if !errors.Is(err, ErrInvalidPitch) {
					t.Fatalf("Parse(%q) error %v is not ErrInvalidPitch", tt.in, err)
				}
			}
		})
	}
}

func TestRoundTripRendering(t *testing.T) {
	flats := map[string]string{"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#"}
	for _, name := range chromatic {
		for octave := MinOctave; octave <= MaxOctave; octave++ {
			in := fmt.Sprintf("%s%d", name, octave)
			if got := MustParse(in).String(); got != in {
				t.Errorf("round trip %q -> %q", in, got)
			}
		}
	}
	for flat, sharp := range flats {
		for octave := MinOctave; octave <= MaxOctave; octave++ {
			in := fmt.Sprintf("%s%d", flat, octave)
			want := fmt.Sprintf("%s%d", sharp, octave)
			p := MustParse(in)
			if got := p.String(); got != want {
				t.Errorf("flat %q rendered %q, want %q", in, got, want)
			}
			if got := p.Written(); got != in {
				t.Errorf("Written() = %q, want %q", got, in)
			}
		}
	}
}

func TestReferencePoints(t *testing.T) {
	if got := FrequencyHz("A4"); got != 440 {
		t.Fatalf("A4 = %v Hz, want 440", got)
	}
	cases := map[string]int{
		"C4":  60,
		"C5":  72,
		"A4":  69,
		"A0":  21,
		"C8":  108,
		"Cb4": 59,
		"B#4": 72,
		"E#4": 65,
		"Db4": 61,
	}
	for in, want := range cases {
		got, err := MIDINumber(in)
		if err != nil {
			t.Fatalf("MIDINumber(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("MIDINumber(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFrequencyAgreesWithMIDINumber(t *testing.T) {
	letters := []string{"A", "B", "C", "D", "E", "F", "G"}
	accidentals := []string{"", "#", "b"}
	for _, l := range letters {
		for _, a := range accidentals {
			for octave := MinOctave; octave <= MaxOctave; octave++ {
				p := MustParse(fmt.Sprintf("%s%s%d", l, a, octave))
				want := 440 * math.Pow(2, float64(p.MIDINumber()-69)/12)
				if got := p.Frequency(); math.Abs(got-want) > 1e-9 {
					t.Errorf("%s: frequency %v, midi-derived %v", p.Written(), got, want)
				}
			}
		}
	}
}

func TestEnharmonicFlatsMatchSharps(t *testing.T) {
	pairs := [][2]string{{"Db4", "C#4"}, {"Eb2", "D#2"}, {"Gb7", "F#7"}, {"Ab0", "G#0"}, {"Bb3", "A#3"}}
	for _, pr := range pairs {
		f, s := MustParse(pr[0]), MustParse(pr[1])
		if f.MIDINumber() != s.MIDINumber() {
			t.Errorf("%s and %s disagree: %d vs %d", pr[0], pr[1], f.MIDINumber(), s.MIDINumber())
		}
		if f.Frequency() != s.Frequency() {
			t.Errorf("%s and %s frequencies differ", pr[0], pr[1])
		}
	}
}

func TestInvalidFrequencyIsSilent(t *testing.T) {
	for _, in := range []string{"", "H2", "C9", "nonsense"} {
		if got := FrequencyHz(in); got != 0 {
			t.Errorf("FrequencyHz(%q) = %v, want 0", in, got)
		}
	}
	if (Pitch{}).Frequency() != 0 {
		t.Errorf("zero pitch should be silent")
	}
}

func TestValidateNotesPreservesOrder(t *testing.T) {
	got := ValidateNotes([]string{"C4", "X9", "G#3", "H2"})
	if len(got) != 2 {
		t.Fatalf("expected 2 valid notes, got %d", len(got))
	}
	if got[0].String() != "C4" || got[1].String() != "G#3" {
		t.Fatalf("unexpected notes: %v", got)
	}
	if len(ValidateNotes([]string{"X", "Y"})) != 0 {
		t.Fatalf("all-invalid input should produce an empty slice")
	}
}

func TestSpellingAtRangeEnds(t *testing.T) {
	tests := []struct {
		in, want string
		midi     int
	}{
		{"Cb0", "Cb0", 11},
		{"B#8", "B#8", 120},
		{"Cb1", "B0", 23},
		{"B#7", "C8", 108},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := MustParse(tt.in)
			got := p.String()
			if got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
			back, err := Parse(got)
			if err != nil {
				t.Fatalf("Parse(%q): %v", got, err)
			}
			if back.MIDINumber() != tt.midi || p.MIDINumber() != tt.midi {
				t.Fatalf("midi %d/%d, want %d", p.MIDINumber(), back.MIDINumber(), tt.midi)
			}
		})
	}
}

func TestFromMIDINumber(t *testing.T) {
	for n := 12; n <= 119; n++ {
		p, err := FromMIDINumber(n)
		if err != nil {
			t.Fatalf("FromMIDINumber(%d): %v", n, err)
		}
		if p.MIDINumber() != n {
			t.Fatalf("FromMIDINumber(%d) round trip gave %d", n, p.MIDINumber())
		}
	}
	for _, n := range []int{-1, 0, 11, 120, 127} {
		if _, err := FromMIDINumber(n); err == nil {
			t.Errorf("FromMIDINumber(%d) should fail", n)
		}
	}
}
