package audio

import (
	"fmt"
	"math"
	"strings"
)

// Waveform is an oscillator shape.
type Waveform int

// Waveforms in toggle order.
const (
	Sine Waveform = iota
	Square
	Triangle
	Sawtooth
	numWaveforms
)

var waveformNames = [numWaveforms]string{"sine", "square", "triangle", "sawtooth"}

// Waveforms lists every waveform in toggle order.
func Waveforms() []Waveform {
	return []Waveform{Sine, Square, Triangle, Sawtooth}
}

// String returns the lowercase name of the waveform.
func (w Waveform) String() string {
	if w < 0 || w >= numWaveforms {
		return fmt.Sprintf("waveform(%d)", int(w))
	}
	return waveformNames[w]
}

// Next returns the waveform that follows w in toggle order.
func (w Waveform) Next() Waveform {
	return (w.normalize() + 1) % numWaveforms
}

// ParseWaveform converts a name into a Waveform.
func ParseWaveform(name string) (Waveform, error) {
	for i, n := range waveformNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Waveform(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown waveform %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (w Waveform) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Waveform) UnmarshalText(b []byte) error {
	parsed, err := ParseWaveform(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w Waveform) normalize() Waveform {
	n := w % numWaveforms
	if n < 0 {
		n += numWaveforms
	}
	return n
}

// sample evaluates the waveform at phase p in [0, 1).
func (w Waveform) sample(p float64) float64 {
	switch w.normalize() {
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		return 4*math.Abs(p-0.5) - 1
	case Sawtooth:
		return 2*p - 1
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
