// Package midiout mirrors triggered chords to a MIDI output port.
package midiout

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ayusman/handchord/internal/music"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

// Channel is the MIDI channel chords are sent on.
const Channel uint8 = 0

// ErrClosed is returned by Chord after Close.
var ErrClosed = errors.New("midi mirror closed")

// Sender writes one message to the output port.
type Sender func(msg midi.Message) error

// Mirror sends each chord as note-on messages and schedules the matching
// note-offs after the chord duration. A key retriggered before its note-off
// is only released by the last pending note-off.
type Mirror struct {
	mu     sync.Mutex
	send   Sender
	close  func() error
	after  func(d time.Duration, f func())
	held   map[uint8]int
	closed bool
}

// Open connects to the first output port whose name contains port.
func Open(port string) (*Mirror, error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		return nil, fmt.Errorf("find midi port %q: %w", port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open midi port %q: %w", port, err)
	}
	return NewMirror(send, out.Close), nil
}

// Ports lists the names of the available output ports.
func Ports() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// CloseDriver releases the MIDI driver. Call once at shutdown.
func CloseDriver() {
	midi.CloseDriver()
}

// NewMirror creates a mirror over send. closer may be nil.
func NewMirror(send Sender, closer func() error) *Mirror {
	return &Mirror{
		send:  send,
		close: closer,
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		held:  make(map[uint8]int),
	}
}

// Chord sends note-on for every parsable note and releases them after duration.
func (m *Mirror) Chord(notes []string, duration time.Duration, velocity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	vel := Velocity(velocity)
	var keys []uint8
	for _, name := range notes {
		n, err := music.Parse(name)
		if err != nil {
			continue
		}
		key := n.MIDIKey()
		if err := m.send(midi.NoteOn(Channel, key, vel)); err != nil {
			if len(keys) > 0 {
				m.after(duration, func() { m.release(keys) })
			}
			return fmt.Errorf("send note on %s: %w", name, err)
		}
		m.held[key]++
		keys = append(keys, key)
	}

	if len(keys) > 0 {
		m.after(duration, func() { m.release(keys) })
	}
	return nil
}

func (m *Mirror) release(keys []uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	for _, key := range keys {
		if m.held[key] == 0 {
			continue
		}
		m.held[key]--
		if m.held[key] > 0 {
			continue
		}
		delete(m.held, key)
		m.send(midi.NoteOff(Channel, key))
	}
}

// Held returns how many chords currently hold key.
func (m *Mirror) Held(key uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

// Close releases every held key and closes the port.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for key := range m.held {
		m.send(midi.NoteOff(Channel, key))
	}
	m.held = make(map[uint8]int)

	if m.close != nil {
		return m.close()
	}
	return nil
}

// Velocity maps an intensity in [0,1] to a MIDI velocity in 1..127.
func Velocity(intensity float64) uint8 {
	v := math.Round(intensity * 127)
	switch {
	case v < 1:
		return 1
	case v > 127:
		return 127
	}
	return uint8(v)
}
