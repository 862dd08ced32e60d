// Package music provides note-name arithmetic and chord construction.
package music

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidNote is returned when a note name cannot be parsed.
var ErrInvalidNote = errors.New("invalid note name")

// Note names use sharps, scientific pitch notation, C4 = MIDI 60.
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var pitchClasses = map[string]int{
	"C": 0, "B#": 0,
	"C#": 1, "DB": 1,
	"D": 2,
	"D#": 3, "EB": 3,
	"E": 4, "FB": 4,
	"F": 5, "E#": 5,
	"F#": 6, "GB": 6,
	"G": 7,
	"G#": 8, "AB": 8,
	"A": 9,
	"A#": 10, "BB": 10,
	"B": 11, "CB": 11,
}

// Note is a MIDI note number.
type Note int

// Parse converts a name such as "C4", "F#3" or "Bb2" into a Note.
func Parse(name string) (Note, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNote, name)
	}

	split := 1
	if len(s) > 2 && (s[1] == '#' || s[1] == 'b' || s[1] == 'B') {
		split = 2
	}

	pc, ok := pitchClasses[strings.ToUpper(s[:split])]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNote, name)
	}

	octave, err := strconv.Atoi(s[split:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNote, name)
	}

	return Note((octave+1)*12 + pc), nil
}

// String returns the sharp-spelled name of the note.
func (n Note) String() string {
	pc := int(n) % 12
	if pc < 0 {
		pc += 12
	}
	octave := int(math.Floor(float64(n)/12)) - 1
	return noteNames[pc] + strconv.Itoa(octave)
}

// Transpose shifts the note by the given number of semitones.
func (n Note) Transpose(semitones int) Note {
	return n + Note(semitones)
}

// Frequency returns the equal-tempered frequency in Hz with A4 = 440.
func (n Note) Frequency() float64 {
	return 440 * math.Pow(2, float64(n-69)/12)
}

// MIDIKey returns the note as a MIDI key clamped into 0..127.
func (n Note) MIDIKey() uint8 {
	switch {
	case n < 0:
		return 0
	case n > 127:
		return 127
	}
	return uint8(n)
}
