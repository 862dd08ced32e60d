package music

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Note
		wantErr bool
	}{
		{name: "middle C", input: "C4", want: 60},
		{name: "A4", input: "A4", want: 69},
		{name: "sharp", input: "F#3", want: 54},
		{name: "flat", input: "Bb2", want: 46},
		{name: "low octave", input: "G3", want: 55},
		{name: "negative octave", input: "C-1", want: 0},
		{name: "empty", input: "", wantErr: true},
		{name: "bad letter", input: "H4", wantErr: true},
		{name: "missing octave", input: "C#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNote) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidNote", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestNote_String(t *testing.T) {
	tests := map[Note]string{
		60:  "C4",
		63:  "D#4",
		70:  "A#4",
		55:  "G3",
		0:   "C-1",
		127: "G9",
	}
	for n, want := range tests {
		if got := n.String(); got != want {
			t.Errorf("Note(%d).String() = %s, want %s", int(n), got, want)
		}
	}
}

func TestNote_Frequency(t *testing.T) {
	if got := mustParse(t, "A4").Frequency(); math.Abs(got-440) > 1e-9 {
		t.Errorf("A4 = %f Hz, want 440", got)
	}
	if got := mustParse(t, "A3").Frequency(); math.Abs(got-220) > 1e-9 {
		t.Errorf("A3 = %f Hz, want 220", got)
	}
}

func TestBuildChord(t *testing.T) {
	t.Run("triad plus two distinct offsets", func(t *testing.T) {
		got, err := BuildChord("C4", 3, 10)
		if err != nil {
			t.Fatalf("BuildChord error: %v", err)
		}
		want := []string{"C4", "E4", "G4", "D#4", "A#4"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BuildChord = %v, want %v", got, want)
		}
	})

	t.Run("offset on a triad note collapses", func(t *testing.T) {
		got, err := BuildChord("C4", 4, 10)
		if err != nil {
			t.Fatalf("BuildChord error: %v", err)
		}
		if len(got) != 4 {
			t.Errorf("len = %d, want 4 (%v)", len(got), got)
		}
	})

	t.Run("both offsets duplicate", func(t *testing.T) {
		got, err := BuildChord("G3", 0, 7)
		if err != nil {
			t.Fatalf("BuildChord error: %v", err)
		}
		want := []string{"G3", "B3", "D4"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BuildChord = %v, want %v", got, want)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		got, err := BuildChord("A3", -12, 12)
		if err != nil {
			t.Fatalf("BuildChord error: %v", err)
		}
		want := []string{"A3", "C#4", "E4", "A2", "A4"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BuildChord = %v, want %v", got, want)
		}
	})

	t.Run("invalid root", func(t *testing.T) {
		if _, err := BuildChord("X9", 3, 10); err == nil {
			t.Error("expected error for invalid root")
		}
	})
}

func TestFrequencies(t *testing.T) {
	got := Frequencies([]string{"A4", "bogus", "A3"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != 440 || got[1] != 220 {
		t.Errorf("Frequencies = %v", got)
	}
}

func mustParse(t *testing.T, name string) Note {
	t.Helper()
	n, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", name, err)
	}
	return n
}
