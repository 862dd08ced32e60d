package audio

import "sync"

// AnalyserSize is the number of waveform samples kept by the analyser.
const AnalyserSize = 64

// Analyser keeps the most recent post-reverb samples for the visualizer.
type Analyser struct {
	mu   sync.Mutex
	ring [AnalyserSize]float32
	pos  int
}

func (a *Analyser) push(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % AnalyserSize
	}
}

// Values returns the buffered waveform, oldest sample first.
func (a *Analyser) Values() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float32, AnalyserSize)
	n := copy(out, a.ring[a.pos:])
	copy(out[n:], a.ring[:a.pos])
	return out
}
