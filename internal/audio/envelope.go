package audio

import "math"

// Envelope fixed values applied by SetDecay.
const (
	decayAttack  = 0.02
	decaySustain = 0.55
	minRelease   = 0.4
)

// Envelope is a linear ADSR envelope. Times are in seconds.
type Envelope struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

// DefaultEnvelope is the synth envelope before any decay change.
var DefaultEnvelope = Envelope{Attack: 0.02, Decay: 0.2, Sustain: 0.5, Release: 1.2}

// EnvelopeForDecay derives the full envelope from a decay time.
// Release follows decay with a 0.4s floor and sustain is fixed.
func EnvelopeForDecay(decay float64) Envelope {
	return Envelope{
		Attack:  decayAttack,
		Decay:   decay,
		Sustain: decaySustain,
		Release: math.Max(minRelease, decay),
	}
}

// held returns the envelope level t seconds after note-on while the gate is open.
func (e Envelope) held(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < e.Attack:
		return t / e.Attack
	case t < e.Attack+e.Decay:
		return 1 - (1-e.Sustain)*(t-e.Attack)/e.Decay
	default:
		return e.Sustain
	}
}

// level returns the envelope level at t for a gate that closed at gateOff.
// done reports that the release phase has finished.
func (e Envelope) level(t, gateOff float64) (lvl float64, done bool) {
	if t < gateOff {
		return e.held(t), false
	}
	rt := t - gateOff
	if e.Release <= 0 || rt >= e.Release {
		return 0, true
	}
	return e.held(gateOff) * (1 - rt/e.Release), false
}
