package audio

// MaxPolyphony is the number of simultaneously sounding voices.
const MaxPolyphony = 32

// voiceGain keeps a full chord at full velocity below clipping.
const voiceGain = 0.15

type voice struct {
	freq     float64
	phase    float64
	velocity float64
	wave     Waveform
	env      Envelope
	age      int
	gateOff  int
}

// next renders one sample and reports whether the voice has finished.
func (v *voice) next(sampleRate float64) (float64, bool) {
	lvl, done := v.env.level(float64(v.age)/sampleRate, float64(v.gateOff)/sampleRate)
	if done {
		return 0, true
	}
	s := v.wave.sample(v.phase) * lvl * v.velocity * voiceGain

	v.phase += v.freq / sampleRate
	if v.phase >= 1 {
		v.phase -= float64(int(v.phase))
	}
	v.age++
	return s, false
}

// polySynth mixes a bounded set of voices.
type polySynth struct {
	sampleRate float64
	voices     []*voice
}

func newPolySynth(sampleRate float64) *polySynth {
	return &polySynth{
		sampleRate: sampleRate,
		voices:     make([]*voice, 0, MaxPolyphony),
	}
}

// trigger starts one voice per frequency, released after duration seconds.
// The oldest voices are stolen when the pool is full.
func (p *polySynth) trigger(freqs []float64, duration, velocity float64, wave Waveform, env Envelope) {
	gateOff := int(duration * p.sampleRate)
	for _, f := range freqs {
		if len(p.voices) >= MaxPolyphony {
			copy(p.voices, p.voices[1:])
			p.voices = p.voices[:len(p.voices)-1]
		}
		p.voices = append(p.voices, &voice{
			freq:     f,
			velocity: velocity,
			wave:     wave,
			env:      env,
			gateOff:  gateOff,
		})
	}
}

func (p *polySynth) next() float64 {
	var sum float64
	live := p.voices[:0]
	for _, v := range p.voices {
		s, done := v.next(p.sampleRate)
		if done {
			continue
		}
		sum += s
		live = append(live, v)
	}
	for i := len(live); i < len(p.voices); i++ {
		p.voices[i] = nil
	}
	p.voices = live
	return sum
}

// setWaveform changes the shape of sounding voices too.
func (p *polySynth) setWaveform(w Waveform) {
	for _, v := range p.voices {
		v.wave = w
	}
}

func (p *polySynth) active() int {
	return len(p.voices)
}
