package app

import (
	"sync"

	"github.com/ayusman/handchord/internal/metrics"
)

// EventType names a live event sent to clients.
type EventType string

const (
	EventState     EventType = "state"
	EventHands     EventType = "hands"
	EventChord     EventType = "chord"
	EventViz       EventType = "viz"
	EventControls  EventType = "controls"
	EventAlert     EventType = "alert"
	EventRecording EventType = "recording"
)

// eventBuffer is the per-subscriber queue length. Slow subscribers miss
// events instead of stalling the loops.
const eventBuffer = 64

// Event is one live update.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Alert is a user-facing error message.
type Alert struct {
	Message string `json:"message"`
}

type broker struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	closed  bool
	metrics *metrics.Manager
}

func newBroker(m *metrics.Manager) *broker {
	return &broker{
		subs:    make(map[chan Event]struct{}),
		metrics: m,
	}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.metrics.SetEventClients(len(b.subs))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
				b.metrics.SetEventClients(len(b.subs))
			}
		})
	}
	return ch, cancel
}

func (b *broker) publish(t EventType, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev := Event{Type: t, Data: data}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.metrics.SetEventClients(0)
}

// Subscribe returns a channel of live events and a function that ends the
// subscription. The channel is closed when the subscription ends.
func (a *App) Subscribe() (<-chan Event, func()) {
	return a.events.subscribe()
}
