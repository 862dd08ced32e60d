// Package render draws the instrument's stage: hand markers over the camera
// frame, the waveform visualizer and the composited image served to clients.
package render

import (
	"image"
	"sync"

	"github.com/fogleman/gg"
)

// Marker appearance.
const (
	MarkerRadius    = 12
	PrimaryColor    = "#ff4d4d"
	SecondaryColor  = "#4d9dff"
	defaultOverlayW = 640
	defaultOverlayH = 480
)

// Overlay is a transparent layer, sized to the video frame, holding one
// marker per tracked hand.
type Overlay struct {
	mu sync.Mutex
	dc *gg.Context
}

// NewOverlay creates an overlay of the given size.
func NewOverlay(width, height int) *Overlay {
	if width <= 0 || height <= 0 {
		width, height = defaultOverlayW, defaultOverlayH
	}
	return &Overlay{dc: gg.NewContext(width, height)}
}

// Resize matches the overlay to the frame. It only reallocates when the
// size actually changes.
func (o *Overlay) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dc.Width() == width && o.dc.Height() == height {
		return
	}
	o.dc = gg.NewContext(width, height)
}

// Size returns the overlay dimensions in pixels.
func (o *Overlay) Size() image.Point {
	o.mu.Lock()
	defer o.mu.Unlock()
	return image.Pt(o.dc.Width(), o.dc.Height())
}

// Clear erases all markers.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dc.SetRGBA(0, 0, 0, 0)
	o.dc.Clear()
}

// DrawMarker draws the marker for hand index i at the normalized position
// (x, y). The first hand is red, every other hand blue.
func (o *Overlay) DrawMarker(i int, x, y float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i == 0 {
		o.dc.SetHexColor(PrimaryColor)
	} else {
		o.dc.SetHexColor(SecondaryColor)
	}
	w, h := float64(o.dc.Width()), float64(o.dc.Height())
	o.dc.DrawCircle(x*w, y*h, MarkerRadius)
	o.dc.Fill()
}

// Snapshot returns a copy of the current overlay pixels.
func (o *Overlay) Snapshot() *image.RGBA {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyRGBA(o.dc.Image())
}

func copyRGBA(img image.Image) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	if src, ok := img.(*image.RGBA); ok {
		copy(dst.Pix, src.Pix)
		return dst
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
