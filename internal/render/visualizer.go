package render

import (
	"image"
	"math"
	"sync"

	"github.com/fogleman/gg"
)

// Visualizer bar layout.
const (
	VizBars      = 24
	VizGap       = 8
	VizMinHeight = 6
	vizPadding   = 12
	vizMaxRadius = 8
)

// Visualizer renders the analyser waveform as a row of rounded white bars.
type Visualizer struct {
	mu sync.Mutex
	dc *gg.Context
}

// NewVisualizer creates a visualizer canvas of the given size.
func NewVisualizer(width, height int) *Visualizer {
	return &Visualizer{dc: gg.NewContext(width, height)}
}

// BarHeights maps analyser samples to bar heights for a canvas of height h.
// Bar i samples values[floor(i*len/bars)]; heights never drop below 6px.
func BarHeights(values []float32, h float64) []float64 {
	heights := make([]float64, VizBars)
	for i := range heights {
		amp := 0.0
		if len(values) > 0 {
			idx := i * len(values) / VizBars
			amp = math.Abs(float64(values[idx]))
		}
		heights[i] = math.Max(VizMinHeight, amp*(h-vizPadding))
	}
	return heights
}

// BarWidth returns the width of one bar on a canvas of width w.
func BarWidth(w float64) float64 {
	return (w - (VizBars-1)*VizGap) / VizBars
}

// Draw clears the canvas and redraws the bars from the analyser values.
func (v *Visualizer) Draw(values []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	w, h := float64(v.dc.Width()), float64(v.dc.Height())
	v.dc.SetRGBA(0, 0, 0, 0)
	v.dc.Clear()

	bw := BarWidth(w)
	if bw <= 0 {
		return
	}
	r := math.Min(vizMaxRadius, bw/2)

	v.dc.SetRGB(1, 1, 1)
	for i, bh := range BarHeights(values, h) {
		x := float64(i) * (bw + VizGap)
		y := (h - bh) / 2
		v.dc.DrawRoundedRectangle(x, y, bw, bh, math.Min(r, bh/2))
	}
	v.dc.Fill()
}

// Snapshot returns a copy of the last drawn bars.
func (v *Visualizer) Snapshot() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyRGBA(v.dc.Image())
}
