package audio

import "math"

// param is a value with a linear ramp toward a target.
type param struct {
	value     float64
	target    float64
	step      float64
	remaining int
}

func newParam(v float64) param {
	return param{value: v, target: v}
}

// rampTo moves toward target over the given number of samples.
func (p *param) rampTo(target float64, samples int) {
	p.target = target
	if samples <= 0 {
		p.value = target
		p.remaining = 0
		return
	}
	p.step = (target - p.value) / float64(samples)
	p.remaining = samples
}

func (p *param) next() float64 {
	if p.remaining > 0 {
		p.value += p.step
		p.remaining--
		if p.remaining == 0 {
			p.value = p.target
		}
	}
	return p.value
}

// lowpass is an RBJ biquad lowpass filter.
type lowpass struct {
	sampleRate float64
	q          float64
	cutoff     param

	lastCutoff         float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func newLowpass(sampleRate, cutoff, q float64) *lowpass {
	f := &lowpass{
		sampleRate: sampleRate,
		q:          q,
		cutoff:     newParam(cutoff),
		lastCutoff: -1,
	}
	f.update(cutoff)
	return f
}

func (f *lowpass) update(cutoff float64) {
	cutoff = math.Max(10, math.Min(cutoff, f.sampleRate*0.45))
	if cutoff == f.lastCutoff {
		return
	}
	f.lastCutoff = cutoff

	w0 := 2 * math.Pi * cutoff / f.sampleRate
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * f.q)
	a0 := 1 + alpha

	f.b0 = (1 - cos) / 2 / a0
	f.b1 = (1 - cos) / a0
	f.b2 = (1 - cos) / 2 / a0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

func (f *lowpass) process(x float64) float64 {
	f.update(f.cutoff.next())
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// maxDelaySeconds bounds the delay line.
const maxDelaySeconds = 1.0

// feedbackDelay is an echo whose output is partially fed back into its input.
type feedbackDelay struct {
	sampleRate float64
	buf        []float64
	pos        int
	delayTime  param
	feedback   param
	wet        float64
}

func newFeedbackDelay(sampleRate, delayTime, feedback, wet float64) *feedbackDelay {
	return &feedbackDelay{
		sampleRate: sampleRate,
		buf:        make([]float64, int(maxDelaySeconds*sampleRate)+2),
		delayTime:  newParam(delayTime),
		feedback:   newParam(feedback),
		wet:        wet,
	}
}

func (d *feedbackDelay) process(x float64) float64 {
	n := len(d.buf)
	// at least one sample: reading at pos would return the oldest slot
	delay := math.Max(1, math.Min(d.delayTime.next(), maxDelaySeconds)*d.sampleRate)
	fb := math.Max(0, math.Min(d.feedback.next(), 0.99))

	read := float64(d.pos) - delay
	for read < 0 {
		read += float64(n)
	}
	i := int(read)
	frac := read - float64(i)
	delayed := d.buf[i%n]*(1-frac) + d.buf[(i+1)%n]*frac

	d.buf[d.pos] = x + delayed*fb
	d.pos = (d.pos + 1) % n

	return x*(1-d.wet) + delayed*d.wet
}

// Freeverb tunings at 44.1kHz.
var (
	combTunings    = []int{1116, 1188, 1277, 1356}
	allpassTunings = []int{556, 441}
)

const (
	stereoSpread = 23
	reverbDamp   = 0.2
	reverbInput  = 0.3
)

type comb struct {
	buf      []float64
	pos      int
	feedback float64
	store    float64
}

func (c *comb) process(x float64) float64 {
	out := c.buf[c.pos]
	c.store = out*(1-reverbDamp) + c.store*reverbDamp
	c.buf[c.pos] = x + c.store*c.feedback
	c.pos = (c.pos + 1) % len(c.buf)
	return out
}

type allpass struct {
	buf []float64
	pos int
}

func (a *allpass) process(x float64) float64 {
	b := a.buf[a.pos]
	a.buf[a.pos] = x + b*0.5
	a.pos = (a.pos + 1) % len(a.buf)
	return b - x
}

// reverb is a small Schroeder/Freeverb network producing a stereo tail.
type reverb struct {
	wet       float64
	combs     [2][]*comb
	allpasses [2][]*allpass
}

func newReverb(sampleRate, decay, wet float64) *reverb {
	r := &reverb{wet: wet}
	scale := sampleRate / 44100
	for ch := 0; ch < 2; ch++ {
		spread := ch * stereoSpread
		for _, t := range combTunings {
			n := int(float64(t+spread) * scale)
			r.combs[ch] = append(r.combs[ch], &comb{
				buf: make([]float64, n),
				// RT60: the loop gain that decays by 60dB over decay seconds.
				feedback: math.Pow(10, -3*float64(n)/(decay*sampleRate)),
			})
		}
		for _, t := range allpassTunings {
			n := int(float64(t+spread) * scale)
			r.allpasses[ch] = append(r.allpasses[ch], &allpass{buf: make([]float64, n)})
		}
	}
	return r
}

func (r *reverb) process(x float64) (l, rt float64) {
	var out [2]float64
	in := x * reverbInput
	for ch := 0; ch < 2; ch++ {
		var sum float64
		for _, c := range r.combs[ch] {
			sum += c.process(in)
		}
		for _, a := range r.allpasses[ch] {
			sum = a.process(sum)
		}
		out[ch] = x*(1-r.wet) + sum*r.wet
	}
	return out[0], out[1]
}
