package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// newClient is swapped out in tests.
var newClient = mqtt.NewClient

// MQTTTransport publishes each envelope to <prefix>/<event name>.
type MQTTTransport struct {
	client mqtt.Client
	prefix string
	qos    byte
	retain bool
}

func NewMQTTTransport(cfg MQTTConfig) (*MQTTTransport, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "fmradio_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "fmradio"
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", cfg.QoS)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infof("mqtt connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("mqtt connection lost: %v", err)
	})

	client := newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, token.Error())
	}
	return &MQTTTransport{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
	}, nil
}

// Topic is where data is published.
func (m *MQTTTransport) Topic(data any) string {
	if env, ok := data.(Envelope); ok {
		return m.prefix + "/" + env.Type
	}
	return m.prefix + "/data"
}

// Send publishes without waiting for the broker acknowledgement.
func (m *MQTTTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	topic := m.Topic(data)
	token := m.client.Publish(topic, m.qos, m.retain, payload)
	go func() {
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			log.Warnf("mqtt publish %s: %v", topic, token.Error())
		}
	}()
	return nil
}

func (m *MQTTTransport) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ Transport = (*MQTTTransport)(nil)
