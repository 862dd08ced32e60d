// Package tracker turns detector output into per-frame hand samples.
package tracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/handchord/internal/detector"
	"gocv.io/x/gocv"
)

// MaxHands is the number of hands tracked per frame.
const MaxHands = 2

// HandSample is a normalized wrist position for one frame.
type HandSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Overlay receives one marker per tracked hand.
type Overlay interface {
	Clear()
	DrawMarker(i int, x, y float64)
}

// Tracker runs hand detection on frames. The detector may be installed
// after construction; until then frames are skipped.
type Tracker struct {
	mu       sync.RWMutex
	detector detector.Detector
}

// New creates a Tracker; d may be nil.
func New(d detector.Detector) *Tracker {
	return &Tracker{detector: d}
}

// SetDetector installs the detector once it is ready.
func (t *Tracker) SetDetector(d detector.Detector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detector = d
}

// Detector returns the installed detector, or nil.
func (t *Tracker) Detector() detector.Detector {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detector
}

// Track clears the overlay, detects hands in frame, redraws markers and
// returns the wrist of each hand, first hand first. It returns (nil, nil)
// while no detector is ready.
func (t *Tracker) Track(frame *gocv.Mat, overlay Overlay) ([]HandSample, error) {
	if overlay != nil {
		overlay.Clear()
	}

	d := t.Detector()
	if d == nil {
		return nil, nil
	}

	hands, err := d.Detect(frame)
	if errors.Is(err, detector.ErrNotReady) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	if len(hands) > MaxHands {
		hands = hands[:MaxHands]
	}
	samples := make([]HandSample, 0, len(hands))
	for i := range hands {
		wrist := hands[i].WristPoint()
		s := HandSample{X: clamp01(wrist.X), Y: clamp01(wrist.Y)}
		samples = append(samples, s)
		if overlay != nil {
			overlay.DrawMarker(i, s.X, s.Y)
		}
	}
	return samples, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
