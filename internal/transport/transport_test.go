package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"fmradio/internal/event"
)

type captureTransport struct {
	mu     sync.Mutex
	sent   []any
	err    error
	closed bool
}

func (c *captureTransport) Send(data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return c.err
}

func (c *captureTransport) Close() error {
	c.closed = true
	return c.err
}

func fixedClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
	return at
}

func TestEnvelope_JSON(t *testing.T) {
	fixedClock(t)
	b, err := json.Marshal(NewEnvelope(event.TuneFinished{OK: true, Frequency: 875}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"tune_finished","time":"2024-03-09T07:05:01Z","payload":{"ok":true,"frequency":875}}`
	if string(b) != want {
		t.Errorf("envelope = %s\nwant       %s", b, want)
	}
}

func TestAttach(t *testing.T) {
	bus := event.NewBus()
	ct := &captureTransport{}
	h := Attach(bus, ct)

	bus.Publish(event.MuteChanged{Muted: true})
	bus.Unsubscribe(h)
	bus.Publish(event.MuteChanged{Muted: false})

	if len(ct.sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(ct.sent))
	}
	env, ok := ct.sent[0].(Envelope)
	if !ok || env.Type != "mute_changed" {
		t.Errorf("sent %+v", ct.sent[0])
	}
}

func TestAttach_SendErrorDoesNotStopDelivery(t *testing.T) {
	bus := event.NewBus()
	failing := &captureTransport{err: errors.New("down")}
	ok := &captureTransport{}
	Attach(bus, failing)
	Attach(bus, ok)

	bus.Publish(event.Exited{})
	if len(ok.sent) != 1 {
		t.Error("second transport missed the event")
	}
}

func TestMulti(t *testing.T) {
	a, b := &captureTransport{err: errors.New("a failed")}, &captureTransport{}
	m := Multi{a, b}

	if err := m.Send("x"); err == nil || err.Error() != "a failed" {
		t.Errorf("Send err = %v", err)
	}
	if len(b.sent) != 1 {
		t.Error("Multi stopped at the first error")
	}
	m.Close()
	if !a.closed || !b.closed {
		t.Error("Multi.Close skipped a transport")
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(NewEnvelope(event.Exited{})); err != nil {
		t.Error(err)
	}
	if err := lt.Send(func() {}); err != nil {
		t.Error("logging transport failed on unencodable data")
	}
}
