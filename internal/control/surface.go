package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/handchord/internal/audio"
)

// Knob names.
const (
	Level     = "level"
	PitchA    = "pitchA"
	PitchB    = "pitchB"
	Decay     = "decay"
	DelayTime = "delayTime"
	Feedback  = "feedback"
)

// ErrUnknownKnob is returned for a knob name the surface does not have.
var ErrUnknownKnob = errors.New("unknown knob")

// Dispatcher consumes audio graph commands.
type Dispatcher interface {
	Dispatch(cmd audio.Command)
}

// Binding converts a knob value into a graph command.
type Binding func(value float64) audio.Command

// KnobState is a knob snapshot for clients.
type KnobState struct {
	Name     string  `json:"name"`
	Label    string  `json:"label"`
	Unit     string  `json:"unit,omitempty"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Step     float64 `json:"step"`
	Value    float64 `json:"value"`
	Angle    float64 `json:"angle"`
	Rotation float64 `json:"rotation"`
}

// Surface owns the instrument's knobs. Knob changes are forwarded to the
// dispatcher through each knob's binding; pitch knobs only hold offsets.
type Surface struct {
	mu        sync.Mutex
	knobs     map[string]*Knob
	order     []string
	bindings  map[string]Binding
	out       Dispatcher
	listeners []func(KnobState)
}

// DefaultKnobs returns the instrument's knob set.
func DefaultKnobs() []*Knob {
	return []*Knob{
		NewKnob(Level, "Level", "dB", -40, 6, 1, audio.DefaultLevelDB),
		NewKnob(PitchA, "Pitch A", "st", -12, 12, 1, 3),
		NewKnob(PitchB, "Pitch B", "st", -12, 12, 1, 10),
		NewKnob(Decay, "Decay", "s", 0.1, 4, 0.1, 1),
		NewKnob(DelayTime, "Delay", "s", 0, 1, 0.01, audio.DefaultDelayTime),
		NewKnob(Feedback, "Feedback", "", 0, 0.9, 0.01, audio.DefaultFeedback),
	}
}

// DefaultBindings maps knobs to graph commands.
func DefaultBindings() map[string]Binding {
	return map[string]Binding{
		Level:     func(v float64) audio.Command { return audio.SetLevel{DB: v} },
		Decay:     func(v float64) audio.Command { return audio.SetDecay{Seconds: v} },
		DelayTime: func(v float64) audio.Command { return audio.SetDelayTime{Seconds: v} },
		Feedback:  func(v float64) audio.Command { return audio.SetFeedback{Ratio: v} },
	}
}

// NewSurface creates the default surface forwarding to out.
func NewSurface(out Dispatcher) *Surface {
	return NewSurfaceWith(out, DefaultKnobs(), DefaultBindings())
}

// NewSurfaceWith creates a surface from explicit knobs and bindings.
func NewSurfaceWith(out Dispatcher, knobs []*Knob, bindings map[string]Binding) *Surface {
	s := &Surface{
		knobs:    make(map[string]*Knob, len(knobs)),
		bindings: bindings,
		out:      out,
	}
	for _, k := range knobs {
		s.knobs[k.Name] = k
		s.order = append(s.order, k.Name)
	}
	return s
}

// Subscribe registers fn to be called after every value change.
func (s *Surface) Subscribe(fn func(KnobState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Knobs returns every knob in declaration order.
func (s *Surface) Knobs() []KnobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]KnobState, 0, len(s.order))
	for _, name := range s.order {
		states = append(states, stateOf(s.knobs[name]))
	}
	return states
}

// Knob returns one knob's state.
func (s *Surface) Knob(name string) (KnobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.knobs[name]
	if !ok {
		return KnobState{}, fmt.Errorf("%w: %s", ErrUnknownKnob, name)
	}
	return stateOf(k), nil
}

// Value returns a knob's current value, or 0 for an unknown name.
func (s *Surface) Value(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.knobs[name]; ok {
		return k.Value()
	}
	return 0
}

// Offsets returns the two pitch offsets in semitones.
func (s *Surface) Offsets() (int, int) {
	return int(s.Value(PitchA)), int(s.Value(PitchB))
}

// Set assigns a value to the named knob.
func (s *Surface) Set(name string, v float64) (KnobState, error) {
	return s.update(name, func(k *Knob) (float64, bool) { return k.SetValue(v) })
}

// Drag moves the named knob from a pointer offset relative to its center.
func (s *Surface) Drag(name string, dx, dy float64) (KnobState, error) {
	return s.update(name, func(k *Knob) (float64, bool) { return k.Drag(dx, dy) })
}

// Reset restores the named knob's default.
func (s *Surface) Reset(name string) (KnobState, error) {
	return s.update(name, func(k *Knob) (float64, bool) { return k.Reset() })
}

func (s *Surface) update(name string, change func(*Knob) (float64, bool)) (KnobState, error) {
	s.mu.Lock()
	k, ok := s.knobs[name]
	if !ok {
		s.mu.Unlock()
		return KnobState{}, fmt.Errorf("%w: %s", ErrUnknownKnob, name)
	}
	v, changed := change(k)
	state := stateOf(k)
	bind := s.bindings[name]
	listeners := append([]func(KnobState){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return state, nil
	}
	if bind != nil && s.out != nil {
		s.out.Dispatch(bind(v))
	}
	for _, fn := range listeners {
		fn(state)
	}
	return state, nil
}

func stateOf(k *Knob) KnobState {
	return KnobState{
		Name:     k.Name,
		Label:    k.Label,
		Unit:     k.Unit,
		Min:      k.Min,
		Max:      k.Max,
		Step:     k.Step,
		Value:    k.Value(),
		Angle:    k.Angle(),
		Rotation: k.Rotation(),
	}
}
