package audio

import (
	"math"

	"github.com/ayusman/handchord/internal/music"
)

// Command is a mutation of the audio graph. Commands are applied in
// dispatch order and are idempotent.
type Command interface {
	apply(g *Graph)
}

// SetWaveform selects the oscillator shape.
type SetWaveform struct {
	Waveform Waveform
}

func (c SetWaveform) apply(g *Graph) {
	g.waveform = c.Waveform.normalize()
	g.synth.setWaveform(g.waveform)
}

// NextWaveform advances the oscillator shape in toggle order.
type NextWaveform struct{}

func (NextWaveform) apply(g *Graph) {
	SetWaveform{Waveform: g.waveform.Next()}.apply(g)
}

// SetCutoff ramps the lowpass cutoff frequency in Hz.
type SetCutoff struct {
	Hz float64
}

func (c SetCutoff) apply(g *Graph) {
	g.filter.cutoff.rampTo(c.Hz, g.rampSamples())
}

// SetDelayTime ramps the delay time in seconds.
type SetDelayTime struct {
	Seconds float64
}

func (c SetDelayTime) apply(g *Graph) {
	g.delay.delayTime.rampTo(math.Max(0, math.Min(c.Seconds, maxDelaySeconds)), g.rampSamples())
}

// SetFeedback ramps the delay feedback ratio.
type SetFeedback struct {
	Ratio float64
}

func (c SetFeedback) apply(g *Graph) {
	g.delay.feedback.rampTo(c.Ratio, g.rampSamples())
}

// SetLevel ramps the master output level in decibels.
type SetLevel struct {
	DB float64
}

func (c SetLevel) apply(g *Graph) {
	g.level.rampTo(c.DB, g.rampSamples())
}

// SetDecay sets the envelope decay. Release becomes max(0.4, decay) and
// sustain is fixed at 0.55.
type SetDecay struct {
	Seconds float64
}

func (c SetDecay) apply(g *Graph) {
	g.envelope = EnvelopeForDecay(c.Seconds)
}

// SetMute gates the master output without touching the level.
type SetMute struct {
	Muted bool
}

func (c SetMute) apply(g *Graph) {
	g.muted = c.Muted
}

// TriggerChord sounds the notes for Duration seconds at Velocity in [0, 1].
type TriggerChord struct {
	Notes    []string
	Duration float64
	Velocity float64
}

func (c TriggerChord) apply(g *Graph) {
	freqs := music.Frequencies(c.Notes)
	if len(freqs) == 0 {
		return
	}
	vel := math.Max(0, math.Min(c.Velocity, 1))
	g.synth.trigger(freqs, c.Duration, vel, g.waveform, g.envelope)
}
