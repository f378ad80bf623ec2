package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"fmradio/internal/event"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient implements the calls the transport makes; the rest of
// mqtt.Client is left to the embedded nil interface.
type fakeClient struct {
	mqtt.Client
	connectErr error

	mu           sync.Mutex
	published    []published
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token { return doneToken{err: c.connectErr} }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func withClient(t *testing.T, c *fakeClient) {
	t.Helper()
	prev := newClient
	newClient = func(*mqtt.ClientOptions) mqtt.Client { return c }
	t.Cleanup(func() { newClient = prev })
}

func TestMQTTTransport_Publish(t *testing.T) {
	fixedClock(t)
	c := &fakeClient{}
	withClient(t, c)

	m, err := NewMQTTTransport(MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "home/radio/", QoS: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Send(NewEnvelope(event.RDSChanged{Enabled: true})); err != nil {
		t.Fatal(err)
	}
	m.Close()

	if len(c.published) != 1 {
		t.Fatalf("published %d messages", len(c.published))
	}
	p := c.published[0]
	if p.topic != "home/radio/rds_changed" || p.qos != 1 || p.retain {
		t.Errorf("published %+v", p)
	}
	want := `{"type":"rds_changed","time":"2024-03-09T07:05:01Z","payload":{"enabled":true}}`
	if string(p.payload) != want {
		t.Errorf("payload = %s", p.payload)
	}
	if !c.disconnected {
		t.Error("Close did not disconnect")
	}
}

func TestMQTTTransport_Topic(t *testing.T) {
	m := &MQTTTransport{prefix: "fmradio"}
	tests := []struct {
		data any
		want string
	}{
		{NewEnvelope(event.Exited{}), "fmradio/exited"},
		{map[string]int{"x": 1}, "fmradio/data"},
	}
	for _, tt := range tests {
		if got := m.Topic(tt.data); got != tt.want {
			t.Errorf("Topic(%T) = %s, want %s", tt.data, got, tt.want)
		}
	}
}

func TestNewMQTTTransport_Errors(t *testing.T) {
	withClient(t, &fakeClient{connectErr: errors.New("refused")})

	tests := []struct {
		name string
		cfg  MQTTConfig
	}{
		{"no broker", MQTTConfig{}},
		{"bad qos", MQTTConfig{Broker: "tcp://b:1883", QoS: 3}},
		{"connect refused", MQTTConfig{Broker: "tcp://b:1883"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMQTTTransport(tt.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
