// Package transport carries engine events out of the process. Every
// transport receives the same JSON envelope.
package transport

import (
	"time"

	"fmradio/internal/event"
	applog "fmradio/internal/log"
)

var log = applog.For("transport")

// Transport defines a generic interface for sending events.
// Implementations must be thread-safe and must not block: Send runs on the
// engine worker.
type Transport interface {
	Send(data any) error
	Close() error
}

// Envelope is the wire form of one event.
type Envelope struct {
	Type    string      `json:"type"`
	Time    time.Time   `json:"time"`
	Payload event.Event `json:"payload"`
}

var now = time.Now

func NewEnvelope(ev event.Event) Envelope {
	return Envelope{Type: ev.Name(), Time: now().UTC(), Payload: ev}
}

// Attach forwards every event published on bus to t. Unsubscribe the
// returned handle to detach.
func Attach(bus *event.Bus, t Transport) event.Handle {
	return bus.Subscribe(func(ev event.Event) {
		if err := t.Send(NewEnvelope(ev)); err != nil {
			log.Warnf("send %s: %v", ev.Name(), err)
		}
	})
}

// Multi fans one Send out to several transports.
type Multi []Transport

func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
