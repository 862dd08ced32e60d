package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// ErrOutputClosed is returned when starting an output that was closed.
var ErrOutputClosed = errors.New("audio output closed")

// Output plays a Graph on the default audio device.
type Output struct {
	graph  *Graph
	mu     sync.Mutex
	ctx    *oto.Context
	ready  chan struct{}
	player oto.Player
	closed bool
}

// NewOutput creates an Output for the graph. The device is opened on Start.
func NewOutput(g *Graph) *Output {
	return &Output{graph: g}
}

// Start opens the device and begins pulling samples from the graph.
// Calling Start on a running output is a no-op.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutputClosed
	}
	if o.player != nil {
		return nil
	}

	// oto allows a single context per process, so it outlives failed starts.
	if o.ctx == nil {
		otoCtx, ready, err := oto.NewContext(o.graph.SampleRate(), Channels, oto.FormatFloat32LE)
		if err != nil {
			return fmt.Errorf("open audio device: %w", err)
		}
		o.ctx = otoCtx
		o.ready = ready
	}
	select {
	case <-o.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	o.player = o.ctx.NewPlayer(o.graph)
	o.player.Play()
	return nil
}

// IsRunning reports whether samples are being pulled.
func (o *Output) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.player != nil && o.player.IsPlaying()
}

// Close stops playback. The output cannot be restarted.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
