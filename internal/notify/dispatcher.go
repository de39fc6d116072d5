// Package notify fans session events out to delivery sinks without ever
// holding up the state change that produced them.
package notify

import (
	"context"
	"time"

	"github.com/kiliankoe/knowme/internal/game"
	"github.com/rs/zerolog/log"
)

// Sink delivers one event. Errors are logged and otherwise ignored.
type Sink interface {
	Deliver(ctx context.Context, evt game.Event) error
}

type SinkFunc func(ctx context.Context, evt game.Event) error

func (f SinkFunc) Deliver(ctx context.Context, evt game.Event) error { return f(ctx, evt) }

type namedSink struct {
	name string
	sink Sink
}

type Dispatcher struct {
	queue   chan game.Event
	sinks   []namedSink
	timeout time.Duration

	// OnDrop is called when the queue is full and an event is discarded.
	OnDrop func(evt game.Event)
}

func NewDispatcher(buffer int, timeout time.Duration) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{queue: make(chan game.Event, buffer), timeout: timeout}
}

// Register adds a sink. Call before Run.
func (d *Dispatcher) Register(name string, s Sink) {
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
}

// Publish enqueues evt and returns immediately.
func (d *Dispatcher) Publish(evt game.Event) {
	select {
	case d.queue <- evt:
	default:
		log.Warn().Str("pin", evt.Pin).Str("event", evt.Name).Msg("notification queue full, dropping event")
		if d.OnDrop != nil {
			d.OnDrop(evt)
		}
	}
}

// Run delivers queued events in order until ctx is cancelled, then flushes
// whatever is still queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case evt := <-d.queue:
			d.deliver(evt)
		case <-ctx.Done():
			for {
				select {
				case evt := <-d.queue:
					d.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(evt game.Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.sink.Deliver(ctx, evt)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("sink", s.name).Str("pin", evt.Pin).Str("event", evt.Name).Msg("event delivery failed")
		}
	}
}
