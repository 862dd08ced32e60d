// Package audio implements the synthesizer signal chain:
// polyphonic synth -> lowpass filter -> feedback delay -> reverb -> master,
// with a waveform analyser tapped after the reverb.
package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Channels is the number of interleaved output channels.
const Channels = 2

// RampTime is the smoothing window for ramped parameters, in seconds.
const RampTime = 0.05

// Initial node settings.
const (
	DefaultCutoff      = 1200.0
	DefaultQ           = 1.0
	DefaultDelayTime   = 0.25
	DefaultFeedback    = 0.3
	DefaultDelayWet    = 0.35
	DefaultReverbDecay = 1.5
	DefaultReverbWet   = 0.3
	DefaultLevelDB     = 0.0
)

// silenceDB is the level at or below which the master output is silent.
const silenceDB = -100.0

// Tap receives every rendered post-master buffer, interleaved.
type Tap func(samples []float32, channels int)

// State is a snapshot of the graph's live parameters.
type State struct {
	Waveform  Waveform `json:"waveform"`
	Cutoff    float64  `json:"cutoff"`
	DelayTime float64  `json:"delay_time"`
	Feedback  float64  `json:"feedback"`
	LevelDB   float64  `json:"level_db"`
	Muted     bool     `json:"muted"`
	Envelope  Envelope `json:"envelope"`
	Voices    int      `json:"voices"`
}

// Graph owns the synthesizer and its effect chain. All mutation goes
// through Dispatch; rendering and mutation are serialized.
type Graph struct {
	mu         sync.Mutex
	sampleRate float64

	synth    *polySynth
	filter   *lowpass
	delay    *feedbackDelay
	reverb   *reverb
	analyser *Analyser

	level    param
	muted    bool
	waveform Waveform
	envelope Envelope

	tap     Tap
	scratch []float32
	mono    []float32
}

// NewGraph builds the fixed chain at the given sample rate. The master
// starts muted until the first power-on.
func NewGraph(sampleRate int) *Graph {
	sr := float64(sampleRate)
	return &Graph{
		sampleRate: sr,
		synth:      newPolySynth(sr),
		filter:     newLowpass(sr, DefaultCutoff, DefaultQ),
		delay:      newFeedbackDelay(sr, DefaultDelayTime, DefaultFeedback, DefaultDelayWet),
		reverb:     newReverb(sr, DefaultReverbDecay, DefaultReverbWet),
		analyser:   &Analyser{},
		level:      newParam(DefaultLevelDB),
		muted:      true,
		waveform:   Sine,
		envelope:   DefaultEnvelope,
	}
}

// SampleRate returns the rendering sample rate in Hz.
func (g *Graph) SampleRate() int {
	return int(g.sampleRate)
}

// Analyser returns the post-reverb waveform analyser.
func (g *Graph) Analyser() *Analyser {
	return g.analyser
}

// Dispatch applies a command. It takes effect from the next rendered sample.
func (g *Graph) Dispatch(cmd Command) {
	if cmd == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	cmd.apply(g)
}

// SetTap installs the master output tap, replacing any previous one.
func (g *Graph) SetTap(t Tap) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tap = t
}

// State returns the current parameter targets.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Waveform:  g.waveform,
		Cutoff:    g.filter.cutoff.target,
		DelayTime: g.delay.delayTime.target,
		Feedback:  g.delay.feedback.target,
		LevelDB:   g.level.target,
		Muted:     g.muted,
		Envelope:  g.envelope,
		Voices:    g.synth.active(),
	}
}

// Render fills out with interleaved stereo samples.
func (g *Graph) Render(out []float32) {
	frames := len(out) / Channels

	g.mu.Lock()
	if cap(g.mono) < frames {
		g.mono = make([]float32, frames)
	}
	mono := g.mono[:frames]

	for i := 0; i < frames; i++ {
		x := g.synth.next()
		x = g.filter.process(x)
		x = g.delay.process(x)
		l, r := g.reverb.process(x)
		mono[i] = float32((l + r) / 2)

		gain := dbToGain(g.level.next())
		if g.muted {
			gain = 0
		}
		out[i*Channels] = float32(l * gain)
		out[i*Channels+1] = float32(r * gain)
	}
	for i := frames * Channels; i < len(out); i++ {
		out[i] = 0
	}
	tap := g.tap
	g.mu.Unlock()

	g.analyser.push(mono)
	if tap != nil {
		tap(out[:frames*Channels], Channels)
	}
}

// Read renders float32 little-endian interleaved stereo into p, for audio
// devices that pull from an io.Reader.
func (g *Graph) Read(p []byte) (int, error) {
	const frameBytes = 4 * Channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	if cap(g.scratch) < frames*Channels {
		g.scratch = make([]float32, frames*Channels)
	}
	buf := g.scratch[:frames*Channels]
	g.Render(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * frameBytes, nil
}

func (g *Graph) rampSamples() int {
	return int(RampTime * g.sampleRate)
}

func dbToGain(db float64) float64 {
	if db <= silenceDB {
		return 0
	}
	return math.Pow(10, db/20)
}
