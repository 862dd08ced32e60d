package app

import (
	"context"
	"math"
	"time"

	"github.com/ayusman/handchord/internal/audio"
	"github.com/ayusman/handchord/internal/control"
	"github.com/ayusman/handchord/internal/logger"
	"github.com/ayusman/handchord/internal/mapper"
	"github.com/ayusman/handchord/internal/music"
	"github.com/ayusman/handchord/internal/render"
	"github.com/ayusman/handchord/internal/tracker"
)

// ChordEvent describes one triggered chord.
type ChordEvent struct {
	Root      string   `json:"root"`
	Notes     []string `json:"notes"`
	Index     int      `json:"index"`
	Intensity float64  `json:"intensity"`
	Duration  float64  `json:"duration"`
}

// runGestures is the gesture cycle. Detection runs inline, so at most one
// frame is in flight; ticks that pass meanwhile are dropped by the ticker
// and counted.
func (a *App) runGestures(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := time.Second / time.Duration(a.config.FrameRate)
	ticker := a.clock.NewTicker(interval)
	defer ticker.Stop()

	var prev time.Time
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			if !a.Running() {
				return
			}
			if !prev.IsZero() {
				if missed := int(now.Sub(prev)/interval) - 1; missed > 0 {
					for i := 0; i < missed; i++ {
						a.config.Metrics.RecordFrameDropped()
					}
				}
			}
			prev = now
			a.tick(now)
		}
	}
}

// tick runs one gesture iteration: read a frame, track hands, redraw the
// markers and drive the graph from the primary hand.
func (a *App) tick(now time.Time) {
	ctx := context.Background()

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.config.Metrics.RecordFrameSkipped()
		a.log.Debug(ctx, "frame unavailable", logger.Error(err))
		return
	}
	defer frame.Close()

	a.overlay.Resize(frame.Cols(), frame.Rows())
	if img, err := render.FrameImage(frame); err == nil {
		a.frameMu.Lock()
		a.frame = img
		a.frameMu.Unlock()
	}

	started := time.Now()
	hands, err := a.tracker.Track(frame, a.overlay)
	if err != nil {
		a.config.Metrics.RecordFrameSkipped()
		a.log.Warn(ctx, "hand tracking failed", logger.Error(err))
		return
	}
	a.config.Metrics.RecordFrame(time.Since(started), len(hands))

	a.mu.Lock()
	a.hands = hands
	a.mu.Unlock()
	a.events.publish(EventHands, hands)

	if len(hands) == 0 {
		return
	}
	primary := hands[0]

	if a.allowChord(now) {
		a.triggerChord(ctx, primary)
	}
	a.graph.Dispatch(audio.SetCutoff{Hz: mapper.Cutoff(primary.Y)})
}

// allowChord applies the chord rate limit against the injected clock.
func (a *App) allowChord(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.lastChord.IsZero() && now.Sub(a.lastChord) <= ChordInterval {
		return false
	}
	a.lastChord = now
	return true
}

func (a *App) triggerChord(ctx context.Context, hand tracker.HandSample) {
	params := mapper.Map(hand.X, hand.Y)
	root := mapper.Root(params.ChordIndex)
	offsetA, offsetB := a.surface.Offsets()

	notes, err := music.BuildChord(root, offsetA, offsetB)
	if err != nil {
		a.log.Error(ctx, "build chord", logger.String("root", root), logger.Error(err))
		return
	}
	duration := math.Max(MinChordDuration, a.surface.Value(control.Decay))

	a.graph.Dispatch(audio.TriggerChord{
		Notes:    notes,
		Duration: duration,
		Velocity: params.Intensity,
	})
	a.config.Metrics.RecordChord(root)

	if a.config.Chords != nil {
		d := time.Duration(duration * float64(time.Second))
		if err := a.config.Chords.Chord(notes, d, params.Intensity); err != nil {
			a.log.Warn(ctx, "mirror chord", logger.Error(err))
		}
	}

	a.events.publish(EventChord, ChordEvent{
		Root:      root,
		Notes:     notes,
		Index:     params.ChordIndex,
		Intensity: params.Intensity,
		Duration:  duration,
	})
}

// runVisualizer redraws the analyser bars every refresh, regardless of power
// state, from the first power on until Close.
func (a *App) runVisualizer(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := a.clock.NewTicker(time.Second / time.Duration(a.config.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			a.drawVisualizer()
		}
	}
}

func (a *App) drawVisualizer() {
	values := a.graph.Analyser().Values()
	a.viz.Draw(values)
	a.events.publish(EventViz, values)
}
